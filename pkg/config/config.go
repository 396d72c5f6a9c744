// Package config loads client configuration from a YAML file or from
// environment variables. The file takes precedence; when it does not exist
// every key falls back to the environment variable of the same name.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config holds the resolved client configuration.
type Config struct {
	// APIEndpoint is the base URL of the document processing service. Required.
	APIEndpoint string

	// APIKey authorizes requests against the processing service. Required.
	APIKey string

	// GCPKeyPath points to a GCP service account JSON key file. Optional;
	// when empty, Authenticate reports a credential error.
	GCPKeyPath string

	// MaxWorkers bounds batch concurrency (default: 5).
	MaxWorkers int

	// MaxAttempts is the per-document retry budget including the first
	// attempt (default: 3).
	MaxAttempts int

	// RetryBaseDelay is the backoff before the first retry; it doubles per
	// subsequent retry (default: 2s).
	RetryBaseDelay time.Duration

	// RequestTimeout bounds one HTTP submission (default: 30s).
	RequestTimeout time.Duration

	// RateLimitRPS throttles outgoing submissions. Zero disables throttling.
	RateLimitRPS float64

	// RedisAddr enables the outcome cache when set (host:port).
	RedisAddr string

	// CacheTTL is the lifetime of cached outcomes (default: 15m).
	CacheTTL time.Duration

	// LogLevel is one of debug, info, warn, error (default: info).
	LogLevel string

	// LogPretty switches log output from JSON to console format.
	LogPretty bool
}

// Configuration keys. The same names are used for YAML keys and environment
// variables.
const (
	keyAPIEndpoint    = "API_ENDPOINT"
	keyAPIKey         = "API_KEY"
	keyGCPKeyPath     = "GCP_JSON_KEY_PATH"
	keyMaxWorkers     = "MAX_WORKERS"
	keyMaxAttempts    = "MAX_ATTEMPTS"
	keyRetryBaseDelay = "RETRY_BASE_DELAY"
	keyRequestTimeout = "REQUEST_TIMEOUT"
	keyRateLimitRPS   = "RATE_LIMIT_RPS"
	keyRedisAddr      = "REDIS_ADDR"
	keyCacheTTL       = "CACHE_TTL"
	keyLogLevel       = "LOG_LEVEL"
	keyLogPretty      = "LOG_PRETTY"
)

// Defaults applied to unset optional keys.
const (
	DefaultMaxWorkers     = 5
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = 2 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultCacheTTL       = 15 * time.Minute
	DefaultLogLevel       = "info"
)

// rawConfig mirrors the on-disk layout. Durations stay strings until parsed
// so "2s" and "500ms" work in YAML and in environment variables alike.
type rawConfig struct {
	APIEndpoint    string `yaml:"API_ENDPOINT"`
	APIKey         string `yaml:"API_KEY"`
	GCPKeyPath     string `yaml:"GCP_JSON_KEY_PATH"`
	MaxWorkers     int    `yaml:"MAX_WORKERS"`
	MaxAttempts    int    `yaml:"MAX_ATTEMPTS"`
	RetryBaseDelay string `yaml:"RETRY_BASE_DELAY"`
	RequestTimeout string `yaml:"REQUEST_TIMEOUT"`
	RateLimitRPS   string `yaml:"RATE_LIMIT_RPS"`
	RedisAddr      string `yaml:"REDIS_ADDR"`
	CacheTTL       string `yaml:"CACHE_TTL"`
	LogLevel       string `yaml:"LOG_LEVEL"`
	LogPretty      bool   `yaml:"LOG_PRETTY"`
}

// Load reads configuration from the YAML file at path. When path is empty or
// the file does not exist, every key is read from the environment instead.
// Missing required keys or unparseable values produce a *ConfigurationError.
func Load(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return loadFile(path)
		} else if !os.IsNotExist(err) {
			return nil, &ConfigurationError{Err: fmt.Errorf("stat %s: %w", path, err)}
		}
	}
	return loadEnv()
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("read %s: %w", path, err)}
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("parse %s: %w", path, err)}
	}

	return raw.resolve()
}

func loadEnv() (*Config, error) {
	raw := rawConfig{
		APIEndpoint:    os.Getenv(keyAPIEndpoint),
		APIKey:         os.Getenv(keyAPIKey),
		GCPKeyPath:     os.Getenv(keyGCPKeyPath),
		RetryBaseDelay: os.Getenv(keyRetryBaseDelay),
		RequestTimeout: os.Getenv(keyRequestTimeout),
		RateLimitRPS:   os.Getenv(keyRateLimitRPS),
		RedisAddr:      os.Getenv(keyRedisAddr),
		CacheTTL:       os.Getenv(keyCacheTTL),
		LogLevel:       os.Getenv(keyLogLevel),
	}

	var err error
	if raw.MaxWorkers, err = intEnv(keyMaxWorkers); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if raw.MaxAttempts, err = intEnv(keyMaxAttempts); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if v := os.Getenv(keyLogPretty); v != "" {
		raw.LogPretty = strings.EqualFold(v, "true") || v == "1"
	}

	return raw.resolve()
}

// resolve validates required keys, parses duration strings and applies
// defaults to everything left unset.
func (r rawConfig) resolve() (*Config, error) {
	var missing []string
	if strings.TrimSpace(r.APIEndpoint) == "" {
		missing = append(missing, keyAPIEndpoint)
	}
	if strings.TrimSpace(r.APIKey) == "" {
		missing = append(missing, keyAPIKey)
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}

	cfg := &Config{
		APIEndpoint: strings.TrimRight(strings.TrimSpace(r.APIEndpoint), "/"),
		APIKey:      r.APIKey,
		GCPKeyPath:  r.GCPKeyPath,
		MaxWorkers:  r.MaxWorkers,
		MaxAttempts: r.MaxAttempts,
		RedisAddr:   r.RedisAddr,
		LogLevel:    r.LogLevel,
		LogPretty:   r.LogPretty,
	}

	var err error
	if cfg.RetryBaseDelay, err = durationField(keyRetryBaseDelay, r.RetryBaseDelay, DefaultRetryBaseDelay); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if cfg.RequestTimeout, err = durationField(keyRequestTimeout, r.RequestTimeout, DefaultRequestTimeout); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if cfg.CacheTTL, err = durationField(keyCacheTTL, r.CacheTTL, DefaultCacheTTL); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if cfg.RateLimitRPS, err = floatField(keyRateLimitRPS, r.RateLimitRPS); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	if cfg.MaxWorkers < 0 {
		return nil, &ConfigurationError{Err: fmt.Errorf("%s must be positive, got %d", keyMaxWorkers, cfg.MaxWorkers)}
	}
	if cfg.MaxAttempts < 0 {
		return nil, &ConfigurationError{Err: fmt.Errorf("%s must be positive, got %d", keyMaxAttempts, cfg.MaxAttempts)}
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	return cfg, nil
}

// durationField parses a duration string, returning def when the value is
// empty or zero.
func durationField(key, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0, got %s", key, d)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

func floatField(key, raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, raw, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("%s: must be >= 0, got %v", key, f)
	}
	return f, nil
}

func intEnv(key string) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, s, err)
	}
	return n, nil
}
