// Package db persists run snapshots to SQLite so the dashboard can serve
// past runs without re-hitting the GitHub API. Collection itself never reads
// from here; every run recomputes its metrics from scratch.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/repopulse/repopulse/internal/models"
	"github.com/repopulse/repopulse/internal/report"
)

// DB represents the database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Initialize creates the database schema if it doesn't exist
func (db *DB) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		organization TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		snapshot TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS repo_stats (
		run_id INTEGER NOT NULL,
		repository TEXT NOT NULL,
		total_prs INTEGER NOT NULL,
		merged_prs INTEGER NOT NULL,
		healthy_prs INTEGER NOT NULL,
		unhealthy_prs INTEGER NOT NULL,
		total_additions INTEGER NOT NULL,
		total_deletions INTEGER NOT NULL,
		total_change_requests INTEGER NOT NULL,
		PRIMARY KEY (run_id, repository),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS contributor_stats (
		run_id INTEGER NOT NULL,
		login TEXT NOT NULL,
		total_commits INTEGER NOT NULL,
		total_prs INTEGER NOT NULL,
		passed_checks INTEGER NOT NULL,
		failed_checks INTEGER NOT NULL,
		active_days INTEGER NOT NULL,
		avg_commits_per_day REAL NOT NULL,
		PRIMARY KEY (run_id, login),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveRun stores one run's snapshot plus the normalized per-repo and
// per-contributor rows, and returns the run id.
func (db *DB) SaveRun(snap report.Snapshot, metrics []*models.RepositoryMetrics, contributors []*models.ContributorStats) (int64, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO runs (organization, start_date, end_date, generated_at, snapshot)
		VALUES (?, ?, ?, ?, ?)`,
		snap.Organization, snap.StartDate, snap.EndDate, snap.GeneratedAt, string(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	for _, m := range metrics {
		_, err := tx.Exec(
			`INSERT INTO repo_stats
			(run_id, repository, total_prs, merged_prs, healthy_prs, unhealthy_prs,
			 total_additions, total_deletions, total_change_requests)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, m.Repository, m.Stats.TotalPRs, m.Stats.MergedPRs,
			m.Stats.HealthyPRs, m.Stats.UnhealthyPRs,
			m.Stats.TotalAdditions, m.Stats.TotalDeletions, m.Stats.TotalChangeRequests,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save repo stats for %s: %w", m.Repository, err)
		}
	}

	for _, c := range contributors {
		_, err := tx.Exec(
			`INSERT INTO contributor_stats
			(run_id, login, total_commits, total_prs, passed_checks, failed_checks,
			 active_days, avg_commits_per_day)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, c.Login, c.TotalCommits, c.TotalPRs,
			c.PassedChecks, c.FailedChecks, c.ActiveDays, c.AvgCommitsPerDay,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save contributor stats for %s: %w", c.Login, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// RunInfo describes one stored run.
type RunInfo struct {
	ID           int64
	Organization string
	StartDate    string
	EndDate      string
	GeneratedAt  time.Time
}

// ListRuns returns stored runs, newest first.
func (db *DB) ListRuns() ([]RunInfo, error) {
	rows, err := db.Query(
		`SELECT id, organization, start_date, end_date, generated_at
		FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		if err := rows.Scan(&r.ID, &r.Organization, &r.StartDate, &r.EndDate, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestSnapshot loads the most recent snapshot. The second return value is
// false when no run has been stored yet.
func (db *DB) LatestSnapshot() (report.Snapshot, bool, error) {
	var payload string
	err := db.QueryRow(`SELECT snapshot FROM runs ORDER BY id DESC LIMIT 1`).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return report.Snapshot{}, false, nil
		}
		return report.Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap report.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return report.Snapshot{}, false, fmt.Errorf("failed to parse stored snapshot: %w", err)
	}
	return snap, true, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
