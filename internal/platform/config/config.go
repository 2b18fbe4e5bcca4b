package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kraal-market/client/internal/platform/textutil"
)

const (
	defaultEnvFile         = ".env"
	defaultRequestTimeout  = 8 * time.Second
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxDelay   = 8 * time.Second
	defaultRecheckInterval = 5 * time.Minute
	defaultUserAgent       = "kraal-client/1.0"
	defaultStateDirName    = "kraal"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	API     APIConfig
	Retry   RetryConfig
	Session SessionConfig
	State   StateConfig
}

// APIConfig describes how to reach the marketplace backend.
type APIConfig struct {
	// BaseURL is the only externally significant setting: the marketplace
	// REST root, e.g. https://api.kraal.market/api.
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// RetryConfig tunes the shared retry policy applied to idempotent reads.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// SessionConfig controls auth-session revalidation behaviour.
type SessionConfig struct {
	RecheckInterval time.Duration
}

// StateConfig locates locally persisted client state (token, profile, cart).
type StateConfig struct {
	Dir string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	configFile   string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithConfigFile points the loader at a YAML config file. When unset, the
// loader falls back to the KRAAL_CONFIG environment variable and otherwise
// skips file configuration entirely.
func WithConfigFile(path string) Option {
	return func(o *loaderOptions) {
		o.configFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Keys
// and values are trimmed on the way in; values in the map take precedence over
// system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = textutil.NormalizeStringMap(values)
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// fileConfig mirrors the YAML config file layout.
type fileConfig struct {
	API struct {
		BaseURL   string `yaml:"base_url"`
		Timeout   string `yaml:"timeout"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"api"`
	Retry struct {
		MaxAttempts int    `yaml:"max_attempts"`
		BaseDelay   string `yaml:"base_delay"`
		MaxDelay    string `yaml:"max_delay"`
	} `yaml:"retry"`
	Session struct {
		RecheckInterval string `yaml:"recheck_interval"`
	} `yaml:"session"`
	State struct {
		Dir string `yaml:"dir"`
	} `yaml:"state"`
}

// Load assembles the client configuration by combining defaults, an optional
// YAML config file, .env overrides, and environment variables (lowest to
// highest precedence).
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := defaultConfig()

	configPath := options.configFile
	if configPath == "" {
		configPath, _ = lookup("KRAAL_CONFIG")
	}
	if configPath != "" {
		fileCfg, err := loadConfigFile(configPath)
		if err != nil {
			return Config{}, err
		}
		applyFileConfig(&cfg, fileCfg)
	}

	cfg.API.BaseURL = stringWithDefault(lookup, "KRAAL_API_BASE_URL", cfg.API.BaseURL)
	cfg.API.Timeout = durationWithDefault(lookup, "KRAAL_API_TIMEOUT", cfg.API.Timeout)
	cfg.API.UserAgent = stringWithDefault(lookup, "KRAAL_API_USER_AGENT", cfg.API.UserAgent)
	cfg.Retry.MaxAttempts = intWithDefault(lookup, "KRAAL_RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts)
	cfg.Retry.BaseDelay = durationWithDefault(lookup, "KRAAL_RETRY_BASE_DELAY", cfg.Retry.BaseDelay)
	cfg.Retry.MaxDelay = durationWithDefault(lookup, "KRAAL_RETRY_MAX_DELAY", cfg.Retry.MaxDelay)
	cfg.Session.RecheckInterval = durationWithDefault(lookup, "KRAAL_SESSION_RECHECK_INTERVAL", cfg.Session.RecheckInterval)
	cfg.State.Dir = stringWithDefault(lookup, "KRAAL_STATE_DIR", cfg.State.Dir)

	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout:   defaultRequestTimeout,
			UserAgent: defaultUserAgent,
		},
		Retry: RetryConfig{
			MaxAttempts: defaultRetryAttempts,
			BaseDelay:   defaultRetryBaseDelay,
			MaxDelay:    defaultRetryMaxDelay,
		},
		Session: SessionConfig{
			RecheckInterval: defaultRecheckInterval,
		},
		State: StateConfig{
			Dir: defaultStateDir(),
		},
	}
}

func defaultStateDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return "." + defaultStateDirName
	}
	return filepath.Join(base, defaultStateDirName)
}

func loadConfigFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return fc, nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if v := strings.TrimSpace(fc.API.BaseURL); v != "" {
		cfg.API.BaseURL = v
	}
	if d, ok := parseDuration(fc.API.Timeout); ok {
		cfg.API.Timeout = d
	}
	if v := strings.TrimSpace(fc.API.UserAgent); v != "" {
		cfg.API.UserAgent = v
	}
	if fc.Retry.MaxAttempts > 0 {
		cfg.Retry.MaxAttempts = fc.Retry.MaxAttempts
	}
	if d, ok := parseDuration(fc.Retry.BaseDelay); ok {
		cfg.Retry.BaseDelay = d
	}
	if d, ok := parseDuration(fc.Retry.MaxDelay); ok {
		cfg.Retry.MaxDelay = d
	}
	if d, ok := parseDuration(fc.Session.RecheckInterval); ok {
		cfg.Session.RecheckInterval = d
	}
	if v := strings.TrimSpace(fc.State.Dir); v != "" {
		cfg.State.Dir = v
	}
}

func parseDuration(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func validateConfig(cfg Config) error {
	var missing []string

	base := strings.TrimSpace(cfg.API.BaseURL)
	if base == "" {
		missing = append(missing, "API.BaseURL")
	} else if u, err := url.Parse(base); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		missing = append(missing, "API.BaseURL")
	}
	if cfg.API.Timeout <= 0 {
		missing = append(missing, "API.Timeout")
	}
	if cfg.Retry.MaxAttempts <= 0 {
		missing = append(missing, "Retry.MaxAttempts")
	}
	if cfg.Retry.BaseDelay <= 0 {
		missing = append(missing, "Retry.BaseDelay")
	}
	if cfg.Session.RecheckInterval <= 0 {
		missing = append(missing, "Session.RecheckInterval")
	}
	if strings.TrimSpace(cfg.State.Dir) == "" {
		missing = append(missing, "State.Dir")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
