package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration of a verification run, sourced from
// the process environment (optionally seeded from a .env file).
type Config struct {
	// Required.
	APIKey    string // NEW_RELIC_API_KEY
	AccountID string // NEW_RELIC_ACCOUNT_ID

	// Optional.
	InsertKey   string // NEW_RELIC_INSERT_KEY
	Region      string // NEW_RELIC_REGION ("US" or "EU", default "US")
	GitHubToken string // GITHUB_TOKEN, enables the failure notifier
	GitHubRepo  string // GITHUB_REPO, "owner/name"
	ResultsDir  string // ENTITYCHECK_RESULTS_DIR, default "results"
	HistoryDB   string // ENTITYCHECK_HISTORY_DB, default "<results>/history.db"
}

// ConfigurationError reports required environment values that are missing.
// It is fatal: nothing network-facing may run after it.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", "))
}

// Load reads configuration from ".env" (if present) and the process
// environment. Precedence: the process environment wins; the .env file only
// fills keys that are not already set, so it documents defaults rather than
// overriding the caller's environment.
func Load() (Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit dotenv path.
func LoadFrom(envPath string) (Config, error) {
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	cfg := Config{
		APIKey:      os.Getenv("NEW_RELIC_API_KEY"),
		AccountID:   os.Getenv("NEW_RELIC_ACCOUNT_ID"),
		InsertKey:   os.Getenv("NEW_RELIC_INSERT_KEY"),
		Region:      os.Getenv("NEW_RELIC_REGION"),
		GitHubToken: os.Getenv("GITHUB_TOKEN"),
		GitHubRepo:  os.Getenv("GITHUB_REPO"),
		ResultsDir:  os.Getenv("ENTITYCHECK_RESULTS_DIR"),
		HistoryDB:   os.Getenv("ENTITYCHECK_HISTORY_DB"),
	}

	var missing []string
	if cfg.APIKey == "" {
		missing = append(missing, "NEW_RELIC_API_KEY")
	}
	if cfg.AccountID == "" {
		missing = append(missing, "NEW_RELIC_ACCOUNT_ID")
	}
	if len(missing) > 0 {
		return Config{}, &ConfigurationError{Missing: missing}
	}

	if cfg.Region == "" {
		cfg.Region = "US"
	}
	if cfg.ResultsDir == "" {
		cfg.ResultsDir = "results"
	}
	if cfg.HistoryDB == "" {
		cfg.HistoryDB = filepath.Join(cfg.ResultsDir, "history.db")
	}
	return cfg, nil
}

// NotifierEnabled reports whether the GitHub failure notifier is
// configured.
func (c Config) NotifierEnabled() bool {
	return c.GitHubToken != "" && c.GitHubRepo != ""
}
