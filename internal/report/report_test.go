package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/repopulse/repopulse/internal/models"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func sampleMetrics() []*models.RepositoryMetrics {
	merged := date(2025, 1, 10)
	pr := &models.PullRequest{
		Number:       42,
		Title:        "Add retry handling",
		Author:       "alice",
		State:        "closed",
		CreatedAt:    date(2025, 1, 5),
		MergedAt:     &merged,
		ClosedAt:     &merged,
		TargetBranch: "main",
		Labels:       []string{"bug"},
		FileCount:    2,
		FileList:     []string{"a.go", "b.go"},
		Additions:    10,
		Deletions:    3,
		DurationDays: 5,
		Health:       models.HealthHealthy,
		Commits: []models.Commit{
			{SHA: "abc123", Message: "fix retry\n\ndetails", Author: "Alice", AuthoredAt: date(2025, 1, 6), PassedChecks: 2},
		},
		Checks: models.CheckRunSummary{Total: 2, Passed: 2},
		ReviewAnalysis: models.ReviewAnalysis{
			Approvers:       []string{"bob", "carol"},
			ApproverComment: "ship it",
			ChangeStatus:    models.ChangesNone,
		},
	}
	return []*models.RepositoryMetrics{{
		Repository:   "acme/widgets",
		PullRequests: []*models.PullRequest{pr},
		Stats:        models.RepoStats{TotalPRs: 1, HealthyPRs: 1, MergedPRs: 1},
	}}
}

func TestBuildActivityRows(t *testing.T) {
	rows := BuildActivityRows(sampleMetrics(), 7, 2)
	require.Len(t, rows, 1)

	row := rows[0]
	require.Equal(t, "acme/widgets", row.Repository)
	require.Equal(t, 42, row.Number)
	require.Equal(t, "Closed", row.Status)
	require.Equal(t, "> 7 days OR > 2 labels", row.HealthThreshold)
	require.Equal(t, "2025-01-05", row.CreatedDate)
	require.Equal(t, "2025-01-10", row.MergedDate)
	require.Equal(t, "bob", row.Approver)
	require.Equal(t, "bob, carol", row.AllApprovers)
	require.Equal(t, "bug", row.Labels)
	require.Equal(t, 1, row.CommitCount)
	require.Equal(t, 2, row.PassedChecks)
}

func TestBuildActivityRowsNoLabels(t *testing.T) {
	metrics := sampleMetrics()
	metrics[0].PullRequests[0].Labels = nil

	rows := BuildActivityRows(metrics, 7, 2)
	require.Equal(t, "None", rows[0].Labels)
	require.Zero(t, rows[0].LabelCount)
}

func TestBuildActivityRowsTruncatesComment(t *testing.T) {
	metrics := sampleMetrics()
	metrics[0].PullRequests[0].ReviewAnalysis.ApproverComment = strings.Repeat("x", 150)

	rows := BuildActivityRows(metrics, 7, 2)
	require.Len(t, rows[0].ApproverComment, 103)
	require.True(t, strings.HasSuffix(rows[0].ApproverComment, "..."))
}

func TestBuildActivityRowsPreviewsFiles(t *testing.T) {
	metrics := sampleMetrics()
	metrics[0].PullRequests[0].FileList = []string{"a", "b", "c", "d", "e", "f", "g"}

	rows := BuildActivityRows(metrics, 7, 2)
	require.Equal(t, "a, b, c, d, e...", rows[0].ChangedFiles)
}

func TestBuildContributorRows(t *testing.T) {
	first := date(2025, 1, 5)
	last := date(2025, 1, 8)
	contributors := []*models.ContributorStats{{
		Login:            "alice",
		Repositories:     []string{"acme/widgets", "acme/gadgets"},
		TotalCommits:     4,
		TotalPRs:         2,
		FirstCommit:      &first,
		LastCommit:       &last,
		ActiveDays:       4,
		AvgCommitsPerDay: 1.0,
	}}

	rows := BuildContributorRows(contributors)
	require.Len(t, rows, 1)
	require.Equal(t, "alice", rows[0].Contributor)
	require.Equal(t, "acme/widgets, acme/gadgets", rows[0].Repositories)
	require.Equal(t, "2025-01-05", rows[0].FirstCommitDate)
	require.Equal(t, "2025-01-08", rows[0].LastCommitDate)
}

func TestBuildContributorRowsSilentCommitter(t *testing.T) {
	rows := BuildContributorRows([]*models.ContributorStats{{
		Login:        "ci-bot",
		TotalCommits: 7,
	}})
	require.Equal(t, 7, rows[0].TotalCommits)
	require.Zero(t, rows[0].TotalPRs)
	require.Empty(t, rows[0].FirstCommitDate)
}

func TestBuildCommitRows(t *testing.T) {
	rows := BuildCommitRows(sampleMetrics(), 7, 2)
	require.Len(t, rows, 1)

	row := rows[0]
	require.Equal(t, "abc123", row.SHA)
	// Only the first line of the commit message is kept.
	require.Equal(t, "fix retry", row.Message)
	require.Equal(t, "2025-01-06", row.CommitDate)
	require.Equal(t, "Closed", row.PRStatus)
	require.Equal(t, 42, row.Number)
}

func TestWriteWorkbook(t *testing.T) {
	dir := t.TempDir()
	metrics := sampleMetrics()
	activity := BuildActivityRows(metrics, 7, 2)
	commits := BuildCommitRows(metrics, 7, 2)
	summary := models.Summary{TotalRepos: 1, TotalPRs: 1, HealthyPRs: 1, HealthRatio: 100}

	path, err := WriteWorkbook(dir, activity, nil, commits, summary)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, WorkbookName), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	require.ElementsMatch(t,
		[]string{SheetActivity, SheetContributors, SheetCommits, SheetSummary},
		f.GetSheetList())

	got, err := f.GetCellValue(SheetActivity, "A2")
	require.NoError(t, err)
	require.Equal(t, "acme/widgets", got)

	header, err := f.GetCellValue(SheetActivity, "A1")
	require.NoError(t, err)
	require.Equal(t, "Repository", header)

	metric, err := f.GetCellValue(SheetSummary, "A2")
	require.NoError(t, err)
	require.Equal(t, "Total Repositories", metric)
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	metrics := sampleMetrics()
	snap := Snapshot{
		GeneratedAt:     date(2025, 2, 1),
		Organization:    "acme",
		StartDate:       "2025-01-01",
		EndDate:         "2025-01-31",
		PRThresholdDays: 7,
		MaxLabels:       2,
		Summary:         models.Summary{TotalRepos: 1, TotalPRs: 1},
		Activity:        BuildActivityRows(metrics, 7, 2),
		Commits:         BuildCommitRows(metrics, 7, 2),
	}

	path, err := WriteSnapshot(dir, snap)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, SnapshotName), path)

	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.Equal(t, "acme", loaded.Organization)
	require.Equal(t, 1, loaded.Summary.TotalPRs)
	require.Len(t, loaded.Activity, 1)
	require.Equal(t, 42, loaded.Activity[0].Number)
}

func TestReadSnapshotMissingFile(t *testing.T) {
	_, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
