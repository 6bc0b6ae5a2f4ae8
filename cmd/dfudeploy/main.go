// Command dfudeploy pushes compute profiles and pipeline definitions to a
// Cloud Data Fusion instance.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/repopulse/repopulse/internal/datafusion"
	"github.com/repopulse/repopulse/internal/httpx"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitInterrupt = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	endpoint := flag.String("endpoint", "", "Data Fusion API endpoint (skips instance lookup)")
	project := flag.String("project", "", "GCP project ID")
	location := flag.String("location", "", "Data Fusion instance location")
	instance := flag.String("instance", "", "Data Fusion instance name")
	namespace := flag.String("namespace", "default", "Target namespace")
	profilePath := flag.String("profile", "", "Path to a compute profile JSON file")
	pipelinePath := flag.String("pipeline", "", "Path to a pipeline JSON file")
	timeout := flag.Int("timeout", 60, "Request timeout in seconds")
	retries := flag.Int("retries", 3, "Max retries for transport failures")
	verbose := flag.Bool("verbose", false, "Log debug output")
	flag.Parse()

	if *profilePath == "" && *pipelinePath == "" {
		fmt.Fprintln(os.Stderr, "Nothing to deploy: provide -profile and/or -pipeline")
		flag.Usage()
		return exitFailure
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		return exitFailure
	}
	defer logger.Sync()

	token, err := datafusion.TokenFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec := httpx.NewExecutor(&http.Client{}, logger, time.Duration(*timeout)*time.Second, *retries)

	resolved := *endpoint
	if resolved == "" {
		if *project == "" || *location == "" || *instance == "" {
			fmt.Fprintln(os.Stderr, "Provide -endpoint, or -project, -location and -instance")
			return exitFailure
		}
		resolved, err = datafusion.ResolveEndpoint(ctx, exec, *project, *location, *instance, token)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to resolve instance endpoint: %v\n", err)
			return exitFailure
		}
		logger.Info("resolved instance endpoint", zap.String("endpoint", resolved))
	}

	client := datafusion.NewClient(exec, resolved, token, logger)

	if *profilePath != "" {
		if err := deployProfile(ctx, client, *namespace, *profilePath); err != nil {
			return reportError(ctx, err)
		}
		fmt.Printf("Deployed compute profile from %s\n", *profilePath)
	}
	if *pipelinePath != "" {
		if err := deployPipeline(ctx, client, *namespace, *pipelinePath); err != nil {
			return reportError(ctx, err)
		}
		fmt.Printf("Deployed pipeline from %s\n", *pipelinePath)
	}

	fmt.Printf("Done (%d API calls)\n", exec.Calls())
	return exitOK
}

func deployProfile(ctx context.Context, client *datafusion.Client, namespace, path string) error {
	name, spec, err := loadArtifact(path)
	if err != nil {
		return err
	}
	existing, err := client.GetProfile(ctx, namespace, name)
	if err != nil {
		return fmt.Errorf("checking profile %s: %w", name, err)
	}
	if existing != nil {
		fmt.Printf("Updating existing profile %s\n", name)
	}
	if err := client.PutProfile(ctx, namespace, name, spec); err != nil {
		return fmt.Errorf("deploying profile %s: %w", name, err)
	}
	return nil
}

func deployPipeline(ctx context.Context, client *datafusion.Client, namespace, path string) error {
	name, spec, err := loadArtifact(path)
	if err != nil {
		return err
	}
	existing, err := client.GetApp(ctx, namespace, name)
	if err != nil {
		return fmt.Errorf("checking pipeline %s: %w", name, err)
	}
	if existing != nil {
		fmt.Printf("Updating existing pipeline %s\n", name)
	}
	if err := client.DeployApp(ctx, namespace, name, spec); err != nil {
		return fmt.Errorf("deploying pipeline %s: %w", name, err)
	}
	return nil
}

// loadArtifact reads a JSON artifact and derives its name. A top-level "name"
// field wins; otherwise the file's base name is used.
func loadArtifact(path string) (string, json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var probe struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	name := probe.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return name, data, nil
}

func reportError(ctx context.Context, err error) int {
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
		return exitInterrupt
	}
	fmt.Fprintf(os.Stderr, "%v\n", err)
	return exitFailure
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}
