package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesLogFile(t *testing.T) {
	dir := t.TempDir()

	logger, cleanup, err := New(dir, false)
	require.NoError(t, err)

	logger.Info("run started")
	cleanup()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	require.Equal(t, "run started", entry["msg"])
	require.Equal(t, "info", entry["level"])
}

func TestNewCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")

	_, cleanup, err := New(dir, true)
	require.NoError(t, err)
	cleanup()

	_, err = os.Stat(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
}

func TestNewWithoutOutputDir(t *testing.T) {
	logger, cleanup, err := New("", false)
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, logger)
}
