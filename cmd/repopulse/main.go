package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/repopulse/repopulse/config"
	"github.com/repopulse/repopulse/internal/aggregate"
	"github.com/repopulse/repopulse/internal/collect"
	"github.com/repopulse/repopulse/internal/dashboard"
	"github.com/repopulse/repopulse/internal/db"
	"github.com/repopulse/repopulse/internal/github"
	"github.com/repopulse/repopulse/internal/httpx"
	"github.com/repopulse/repopulse/internal/logging"
	"github.com/repopulse/repopulse/internal/models"
	"github.com/repopulse/repopulse/internal/report"
)

// Exit codes: 0 success, 1 validation/auth/collection failure, 130 interrupt.
const (
	exitOK        = 0
	exitFailure   = 1
	exitInterrupt = 130
)

const dateLayout = "2006-01-02"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	createConfig := flag.Bool("init", false, "Create a default configuration file if it doesn't exist")
	org := flag.String("org", "", "GitHub organization/owner name")
	startDateStr := flag.String("start-date", "", "Start date in YYYY-MM-DD format")
	endDateStr := flag.String("end-date", "", "End date in YYYY-MM-DD format")
	reposFile := flag.String("repos-file", "", "Path to file containing repository names (one per line)")
	tokenFile := flag.String("token-file", "", "Path to file containing GitHub token (optional)")
	prThreshold := flag.Int("pr-threshold", 0, "PR health threshold in days")
	labelThreshold := flag.Int("label-threshold", 0, "Maximum labels threshold")
	outputDir := flag.String("output-dir", "", "Output directory path")
	serve := flag.Bool("serve", false, "Serve the dashboard API (after collection, or standalone)")
	serveAddr := flag.String("serve-addr", ":8080", "Dashboard listen address")
	verbose := flag.Bool("verbose", false, "Log debug output to the console")
	flag.Parse()

	if *createConfig {
		if err := config.CreateDefaultConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create default configuration: %v\n", err)
			return exitFailure
		}
		fmt.Printf("Created default configuration at %s\n", *configPath)
		return exitOK
	}

	cfg := config.Default()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			return exitFailure
		}
		cfg = loaded
	}

	// Flags override config file values.
	if *org != "" {
		cfg.Organization = *org
	}
	if *tokenFile != "" {
		cfg.TokenFile = *tokenFile
	}
	if *prThreshold > 0 {
		cfg.PRThresholdDays = *prThreshold
	}
	if *labelThreshold > 0 {
		cfg.MaxLabels = *labelThreshold
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collecting := *startDateStr != "" || *endDateStr != "" || *reposFile != ""
	if !collecting && !*serve {
		flag.Usage()
		return exitFailure
	}

	logger, closeLogger, err := logging.New(cfg.OutputDir, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		return exitFailure
	}
	defer closeLogger()

	store, err := db.New(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open snapshot database: %v\n", err)
		return exitFailure
	}
	defer store.Close()
	if err := store.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize snapshot database: %v\n", err)
		return exitFailure
	}

	if collecting {
		code := collectAndReport(ctx, cfg, store, logger, *startDateStr, *endDateStr, *reposFile)
		if code != exitOK {
			return code
		}
	}

	if *serve {
		return serveDashboard(ctx, *serveAddr, store, logger)
	}
	return exitOK
}

// collectAndReport runs the full collection and report generation flow.
// Configuration problems are fatal and reported on stderr; failures on
// individual repositories only degrade the run.
func collectAndReport(ctx context.Context, cfg *config.Config, store *db.DB, logger *zap.Logger, startStr, endStr, reposFile string) int {
	start, end, err := parseWindow(startStr, endStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid date range: %v\n", err)
		return exitFailure
	}

	repos, err := resolveRepositories(cfg, reposFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitFailure
	}

	token, err := cfg.ResolveToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve GitHub token: %v\n", err)
		return exitFailure
	}
	if token == "" {
		fmt.Fprintf(os.Stderr, "No GitHub token found: set %s, use -token-file, or add it to the config\n", config.EnvGithubToken)
		return exitFailure
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		return exitFailure
	}

	exec := httpx.NewExecutor(&http.Client{}, logger,
		time.Duration(cfg.RequestTimeoutSeconds)*time.Second, cfg.MaxRetries)
	client := github.NewClient(exec, "", token, logger)

	if err := client.ValidateToken(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "GitHub authentication failed: %v\n", err)
		return exitFailure
	}

	collector := collect.New(client, github.NewGraphQLClient(token), logger, collect.Options{
		PRThresholdDays: cfg.PRThresholdDays,
		MaxLabels:       cfg.MaxLabels,
	})

	started := time.Now()
	var all []*models.RepositoryMetrics
	succeeded, failed, skipped := 0, 0, 0

	for _, repo := range repos {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
			return exitInterrupt
		}
		if _, _, err := collect.SplitRepository(repo); err != nil {
			logger.Warn("skipping invalid repository", zap.String("repo", repo), zap.Error(err))
			skipped++
			continue
		}

		logger.Info("collecting repository", zap.String("repo", repo))
		metrics, err := collector.CollectRepository(ctx, repo, start, end)
		if err != nil {
			logger.Error("failed to collect repository", zap.String("repo", repo), zap.Error(err))
			failed++
			continue
		}
		all = append(all, metrics)
		succeeded++
	}

	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
		return exitInterrupt
	}

	summary := aggregate.Summarize(all)
	contributors := aggregate.Contributors(all)

	snap := report.Snapshot{
		GeneratedAt:     time.Now().UTC(),
		Organization:    cfg.Organization,
		StartDate:       start.Format(dateLayout),
		EndDate:         end.Format(dateLayout),
		PRThresholdDays: cfg.PRThresholdDays,
		MaxLabels:       cfg.MaxLabels,
		Summary:         summary,
		Activity:        report.BuildActivityRows(all, cfg.PRThresholdDays, cfg.MaxLabels),
		Contributors:    report.BuildContributorRows(contributors),
		Commits:         report.BuildCommitRows(all, cfg.PRThresholdDays, cfg.MaxLabels),
	}

	workbook, err := report.WriteWorkbook(cfg.OutputDir, snap.Activity, snap.Contributors, snap.Commits, summary)
	if err != nil {
		logger.Error("failed to write workbook", zap.Error(err))
		return exitFailure
	}
	snapshotPath, err := report.WriteSnapshot(cfg.OutputDir, snap)
	if err != nil {
		logger.Error("failed to write snapshot", zap.Error(err))
		return exitFailure
	}
	if _, err := store.SaveRun(snap, all, contributors); err != nil {
		logger.Error("failed to store run", zap.Error(err))
		return exitFailure
	}

	fmt.Printf("Run complete: %d repositories succeeded, %d failed, %d skipped (%d API calls, %s)\n",
		succeeded, failed, skipped, client.Calls(), time.Since(started).Round(time.Second))
	fmt.Printf("Reports written to %s and %s\n", workbook, snapshotPath)

	if failed > 0 && succeeded == 0 {
		return exitFailure
	}
	return exitOK
}

// serveDashboard blocks serving the dashboard API until interrupted.
func serveDashboard(ctx context.Context, addr string, store *db.DB, logger *zap.Logger) int {
	srv := dashboard.New(addr, store, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Dashboard server failed: %v\n", err)
			return exitFailure
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("dashboard shutdown incomplete", zap.Error(err))
		}
	}
	return exitOK
}

// parseWindow validates the date flags and returns the UTC window.
func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("both -start-date and -end-date are required")
	}
	start, err := time.ParseInLocation(dateLayout, startStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startStr, err)
	}
	end, err := time.ParseInLocation(dateLayout, endStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endStr, err)
	}
	// The end day is inclusive.
	end = end.Add(24*time.Hour - time.Second)
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date must be before end date")
	}
	return start, end, nil
}

// resolveRepositories merges the repos file with the config list and applies
// the organization prefix to bare names.
func resolveRepositories(cfg *config.Config, reposFile string) ([]string, error) {
	repos := cfg.Repositories
	if reposFile != "" {
		loaded, err := config.LoadRepositories(reposFile)
		if err != nil {
			return nil, err
		}
		repos = loaded
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("no repositories to collect: provide -repos-file or configure repositories")
	}

	resolved := make([]string, 0, len(repos))
	for _, repo := range repos {
		if !strings.Contains(repo, "/") && cfg.Organization != "" {
			repo = cfg.Organization + "/" + repo
		}
		resolved = append(resolved, repo)
	}
	return resolved, nil
}
