package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(filepath.Join(t.TempDir(), "missing.env")),
		WithEnvMap(map[string]string{
			"KRAAL_API_BASE_URL": "https://api.kraal.test/api",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.API.BaseURL != "https://api.kraal.test/api" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://api.kraal.test/api")
	}
	if cfg.API.Timeout != 8*time.Second {
		t.Errorf("API.Timeout = %v, want %v", cfg.API.Timeout, 8*time.Second)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelay != 500*time.Millisecond {
		t.Errorf("Retry.BaseDelay = %v, want %v", cfg.Retry.BaseDelay, 500*time.Millisecond)
	}
	if cfg.Session.RecheckInterval != 5*time.Minute {
		t.Errorf("Session.RecheckInterval = %v, want %v", cfg.Session.RecheckInterval, 5*time.Minute)
	}
	if cfg.State.Dir == "" {
		t.Error("State.Dir should default to a non-empty path")
	}
}

func TestLoadMissingBaseURL(t *testing.T) {
	_, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(filepath.Join(t.TempDir(), "missing.env")),
	)
	if err == nil {
		t.Fatal("Load should fail without a base URL")
	}

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	fields := validationErr.Fields()
	if len(fields) != 1 || fields[0] != "API.BaseURL" {
		t.Errorf("Fields() = %v, want [API.BaseURL]", fields)
	}
}

func TestLoadRejectsInvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"not-a-url", "ftp://files.kraal.test", "https://"} {
		_, err := Load(
			WithoutSystemEnv(),
			WithEnvFile(filepath.Join(t.TempDir(), "missing.env")),
			WithEnvMap(map[string]string{"KRAAL_API_BASE_URL": raw}),
		)
		if err == nil {
			t.Errorf("Load accepted invalid base URL %q", raw)
		}
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(filepath.Join(t.TempDir(), "missing.env")),
		WithEnvMap(map[string]string{
			"KRAAL_API_BASE_URL":             "https://api.kraal.test/api/",
			"KRAAL_API_TIMEOUT":              "12s",
			"KRAAL_RETRY_MAX_ATTEMPTS":       "5",
			"KRAAL_RETRY_BASE_DELAY":         "250ms",
			"KRAAL_SESSION_RECHECK_INTERVAL": "90s",
			"KRAAL_STATE_DIR":                "/tmp/kraal-test-state",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.API.BaseURL != "https://api.kraal.test/api" {
		t.Errorf("trailing slash should be trimmed, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 12*time.Second {
		t.Errorf("API.Timeout = %v, want 12s", cfg.API.Timeout)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Retry.MaxAttempts = %d, want 5", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("Retry.BaseDelay = %v, want 250ms", cfg.Retry.BaseDelay)
	}
	if cfg.Session.RecheckInterval != 90*time.Second {
		t.Errorf("Session.RecheckInterval = %v, want 90s", cfg.Session.RecheckInterval)
	}
	if cfg.State.Dir != "/tmp/kraal-test-state" {
		t.Errorf("State.Dir = %q, want /tmp/kraal-test-state", cfg.State.Dir)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# local overrides\nexport KRAAL_API_BASE_URL=\"https://env-file.kraal.test\"\nKRAAL_RETRY_MAX_ATTEMPTS=4\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("writing env file: %v", err)
	}

	cfg, err := Load(WithoutSystemEnv(), WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "https://env-file.kraal.test" {
		t.Errorf("API.BaseURL = %q, want env file value", cfg.API.BaseURL)
	}
	if cfg.Retry.MaxAttempts != 4 {
		t.Errorf("Retry.MaxAttempts = %d, want 4", cfg.Retry.MaxAttempts)
	}
}

func TestLoadEnvMapBeatsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("KRAAL_API_BASE_URL=https://env-file.kraal.test\n"), 0o600); err != nil {
		t.Fatalf("writing env file: %v", err)
	}

	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(envPath),
		WithEnvMap(map[string]string{"KRAAL_API_BASE_URL": "https://env-map.kraal.test"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "https://env-map.kraal.test" {
		t.Errorf("API.BaseURL = %q, env map should win over env file", cfg.API.BaseURL)
	}
}

func TestLoadEnvMapTrimsInput(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(filepath.Join(t.TempDir(), "missing.env")),
		WithEnvMap(map[string]string{" KRAAL_API_BASE_URL ": " https://padded.kraal.test "}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "https://padded.kraal.test" {
		t.Errorf("API.BaseURL = %q, padded keys and values should be trimmed", cfg.API.BaseURL)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "kraal.yaml")
	content := `api:
  base_url: https://yaml.kraal.test/api
  timeout: 15s
retry:
  max_attempts: 2
  base_delay: 1s
session:
  recheck_interval: 10m
state:
  dir: /var/lib/kraal
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(filepath.Join(dir, "missing.env")),
		WithConfigFile(configPath),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.API.BaseURL != "https://yaml.kraal.test/api" {
		t.Errorf("API.BaseURL = %q, want yaml value", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 15*time.Second {
		t.Errorf("API.Timeout = %v, want 15s", cfg.API.Timeout)
	}
	if cfg.Retry.MaxAttempts != 2 {
		t.Errorf("Retry.MaxAttempts = %d, want 2", cfg.Retry.MaxAttempts)
	}
	if cfg.Session.RecheckInterval != 10*time.Minute {
		t.Errorf("Session.RecheckInterval = %v, want 10m", cfg.Session.RecheckInterval)
	}
	if cfg.State.Dir != "/var/lib/kraal" {
		t.Errorf("State.Dir = %q, want /var/lib/kraal", cfg.State.Dir)
	}
}

func TestLoadEnvBeatsConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "kraal.yaml")
	if err := os.WriteFile(configPath, []byte("api:\n  base_url: https://yaml.kraal.test\n"), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(filepath.Join(dir, "missing.env")),
		WithConfigFile(configPath),
		WithEnvMap(map[string]string{"KRAAL_API_BASE_URL": "https://env.kraal.test"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "https://env.kraal.test" {
		t.Errorf("API.BaseURL = %q, env should win over config file", cfg.API.BaseURL)
	}
}
