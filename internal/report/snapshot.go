package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/repopulse/repopulse/internal/models"
)

// SnapshotName is the dashboard hand-off file in the output directory.
const SnapshotName = "report_data.json"

// Snapshot bundles everything a dashboard needs to render one run.
type Snapshot struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	Organization    string           `json:"organization"`
	StartDate       string           `json:"start_date"`
	EndDate         string           `json:"end_date"`
	PRThresholdDays int              `json:"pr_threshold_days"`
	MaxLabels       int              `json:"max_labels"`
	Summary         models.Summary   `json:"summary"`
	Activity        []ActivityRow    `json:"activity"`
	Contributors    []ContributorRow `json:"contributors"`
	Commits         []CommitRow      `json:"commits"`
}

// WriteSnapshot serializes the snapshot to outputDir and returns its path.
func WriteSnapshot(outputDir string, snap Snapshot) (string, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := filepath.Join(outputDir, SnapshotName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return snap, nil
}
