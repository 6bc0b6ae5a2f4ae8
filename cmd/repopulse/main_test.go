package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/repopulse/repopulse/config"
)

func TestParseWindow(t *testing.T) {
	start, end, err := parseWindow("2025-01-01", "2025-01-31")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), start)
	// The end day is inclusive.
	require.Equal(t, time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC), end)
}

func TestParseWindowErrors(t *testing.T) {
	_, _, err := parseWindow("", "2025-01-31")
	require.Error(t, err)

	_, _, err = parseWindow("01/01/2025", "2025-01-31")
	require.Error(t, err)

	_, _, err = parseWindow("2025-02-01", "2025-01-01")
	require.Error(t, err)
	require.Contains(t, err.Error(), "start date must be before end date")
}

func TestParseWindowSingleDay(t *testing.T) {
	start, end, err := parseWindow("2025-01-15", "2025-01-15")
	require.NoError(t, err)
	require.True(t, start.Before(end))
}

func TestResolveRepositoriesAppliesOrgPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.txt")
	require.NoError(t, os.WriteFile(path, []byte("widgets\nother-org/gadgets\n"), 0644))

	cfg := config.Default()
	cfg.Organization = "acme"

	repos, err := resolveRepositories(cfg, path)
	require.NoError(t, err)
	require.Equal(t, []string{"acme/widgets", "other-org/gadgets"}, repos)
}

func TestResolveRepositoriesFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Repositories = []string{"acme/widgets"}

	repos, err := resolveRepositories(cfg, "")
	require.NoError(t, err)
	require.Equal(t, []string{"acme/widgets"}, repos)
}

func TestResolveRepositoriesEmpty(t *testing.T) {
	_, err := resolveRepositories(config.Default(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no repositories")
}
