package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// EnvGithubToken is the environment variable name for the GitHub API token
	EnvGithubToken = "GITHUB_TOKEN"

	// DefaultPRThresholdDays flags PRs open longer than this many days.
	DefaultPRThresholdDays = 2

	// DefaultMaxLabels flags PRs carrying more labels than this.
	DefaultMaxLabels = 2

	// DefaultRequestTimeoutSeconds bounds each HTTP attempt.
	DefaultRequestTimeoutSeconds = 30

	// DefaultMaxRetries is the number of extra attempts after a transport
	// failure.
	DefaultMaxRetries = 3
)

// Config represents the application configuration
type Config struct {
	// GitHub API token for authentication (optional, can be set via the
	// GITHUB_TOKEN env var or a token file)
	GitHubToken string `json:"github_token"`

	// Path to a file holding the token; takes priority over env and the
	// inline token when set
	TokenFile string `json:"token_file"`

	// GitHub organization/owner the repositories belong to
	Organization string `json:"organization"`

	// List of repositories to collect in the format "owner/name"
	Repositories []string `json:"repositories"`

	// Health thresholds
	PRThresholdDays int `json:"pr_threshold_days"`
	MaxLabels       int `json:"max_labels"`

	// Where reports, the snapshot, and the log file land
	OutputDir string `json:"output_dir"`

	// Path to the SQLite run-snapshot database
	DatabasePath string `json:"database_path"`

	// HTTP behavior
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
	MaxRetries            int `json:"max_retries"`
}

// Default returns a config with all defaults applied.
func Default() *Config {
	return &Config{
		PRThresholdDays:       DefaultPRThresholdDays,
		MaxLabels:             DefaultMaxLabels,
		OutputDir:             "github_reports",
		DatabasePath:          "repopulse.db",
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		MaxRetries:            DefaultMaxRetries,
	}
}

// LoadConfig loads the configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Make database path absolute if it's relative
	if config.DatabasePath != "" && !filepath.IsAbs(config.DatabasePath) {
		configDir := filepath.Dir(path)
		config.DatabasePath = filepath.Join(configDir, config.DatabasePath)
	}

	return config, nil
}

// SaveConfig saves the configuration to a JSON file
func SaveConfig(config *Config, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig creates a default configuration file if it doesn't exist
func CreateDefaultConfig(path string) error {
	// Check if the file already exists
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, don't overwrite
	}

	config := Default()
	config.Repositories = []string{"example/repo"}

	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return SaveConfig(config, path)
}

// ResolveToken finds the GitHub token: token file first, then the
// environment, then the inline config value. An empty result means no token
// is available.
func (c *Config) ResolveToken() (string, error) {
	if c.TokenFile != "" {
		data, err := os.ReadFile(c.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		token := strings.TrimSpace(string(data))
		if token != "" {
			return token, nil
		}
	}

	if token := os.Getenv(EnvGithubToken); token != "" {
		return token, nil
	}

	return c.GitHubToken, nil
}

// LoadRepositories reads a repositories file, one "owner/name" per line.
// Blank lines and lines starting with '#' are skipped.
func LoadRepositories(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repositories file: %w", err)
	}
	defer f.Close()

	var repos []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		repos = append(repos, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read repositories file: %w", err)
	}
	return repos, nil
}
