package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func clearRequired(t *testing.T) {
	t.Helper()
	// t.Setenv registers restoration; the empty value still counts as unset
	// for validation since Getenv returns "".
	t.Setenv("NEW_RELIC_API_KEY", "")
	t.Setenv("NEW_RELIC_ACCOUNT_ID", "")
}

func TestLoadMissingRequired(t *testing.T) {
	clearRequired(t)

	_, err := LoadFrom(filepath.Join(t.TempDir(), "no-such.env"))
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigurationError", err)
	}
	if len(ce.Missing) != 2 {
		t.Errorf("Missing = %v, want both required keys", ce.Missing)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NEW_RELIC_API_KEY", "key")
	t.Setenv("NEW_RELIC_ACCOUNT_ID", "123456")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "no-such.env"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Region != "US" {
		t.Errorf("Region = %q, want default US", cfg.Region)
	}
	if cfg.ResultsDir != "results" {
		t.Errorf("ResultsDir = %q", cfg.ResultsDir)
	}
	if cfg.HistoryDB != filepath.Join("results", "history.db") {
		t.Errorf("HistoryDB = %q", cfg.HistoryDB)
	}
	if cfg.NotifierEnabled() {
		t.Error("notifier should be disabled without GITHUB_TOKEN/GITHUB_REPO")
	}
}

func TestLoadDotenvFileFillsUnsetKeys(t *testing.T) {
	t.Setenv("NEW_RELIC_API_KEY", "process-key")

	// The account id must be genuinely unset for the file to supply it.
	old, had := os.LookupEnv("NEW_RELIC_ACCOUNT_ID")
	os.Unsetenv("NEW_RELIC_ACCOUNT_ID")
	t.Cleanup(func() {
		os.Unsetenv("NEW_RELIC_ACCOUNT_ID")
		os.Unsetenv("NEW_RELIC_REGION")
		if had {
			os.Setenv("NEW_RELIC_ACCOUNT_ID", old)
		}
	})
	os.Unsetenv("NEW_RELIC_REGION")

	envPath := filepath.Join(t.TempDir(), ".env")
	envData := `# verification credentials
NEW_RELIC_API_KEY=file-key
NEW_RELIC_ACCOUNT_ID=999999
NEW_RELIC_REGION=EU

`
	if err := os.WriteFile(envPath, []byte(envData), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(envPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	// Process environment wins over the file.
	if cfg.APIKey != "process-key" {
		t.Errorf("APIKey = %q, want the process value", cfg.APIKey)
	}
	// Keys the process does not set come from the file.
	if cfg.AccountID != "999999" {
		t.Errorf("AccountID = %q, want the file value", cfg.AccountID)
	}
	if cfg.Region != "EU" {
		t.Errorf("Region = %q, want the file value", cfg.Region)
	}
}

func TestNotifierEnabled(t *testing.T) {
	t.Setenv("NEW_RELIC_API_KEY", "key")
	t.Setenv("NEW_RELIC_ACCOUNT_ID", "123456")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("GITHUB_REPO", "acme/kafka-monitoring")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "no-such.env"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if !cfg.NotifierEnabled() {
		t.Error("notifier should be enabled")
	}
}
