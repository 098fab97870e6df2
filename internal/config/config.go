package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration parameters
type Config struct {
	DBPath            string   `json:"db_path" yaml:"db_path"`
	MetricsPath       string   `json:"metrics_path" yaml:"metrics_path"`
	RepositoryURL     string   `json:"repository_url" yaml:"repository_url"`
	Offline           bool     `json:"offline" yaml:"offline"`
	RequestTimeoutMs  int      `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	ConcurrentWorkers int      `json:"concurrent_workers" yaml:"concurrent_workers"`
	RetryAttempts     int      `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelayMs      int      `json:"retry_delay_ms" yaml:"retry_delay_ms"`
	ExcludedGroups    []string `json:"excluded_groups" yaml:"excluded_groups"`
	PrecedencePolicy  string   `json:"precedence_policy" yaml:"precedence_policy"`
	LogLevel          string   `json:"log_level" yaml:"log_level"`
}

// Environment variables overriding file values
const (
	EnvDBPath        = "WEAVER_DB_PATH"
	EnvRepositoryURL = "WEAVER_REPOSITORY_URL"
	EnvLogLevel      = "WEAVER_LOG_LEVEL"
)

// LoadConfig reads configuration from a JSON or YAML file, applies .env and
// environment overrides, then defaults, and validates the result. A missing
// file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logrus.Debugf("Config file %s not found, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		if err := decode(path, data, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(&cfg)

	// Apply defaults for missing values
	applyDefaults(&cfg)

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvRepositoryURL); v != "" {
		cfg.RepositoryURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = "weaver.db"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
	if cfg.RepositoryURL == "" {
		cfg.RepositoryURL = "https://repo1.maven.org/maven2"
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 5000
	}
	if cfg.ConcurrentWorkers == 0 {
		cfg.ConcurrentWorkers = 4
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelayMs == 0 {
		cfg.RetryDelayMs = 500
	}
	if cfg.PrecedencePolicy == "" {
		cfg.PrecedencePolicy = "adjacent"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// validate checks that values are sensible
func validate(cfg *Config) error {
	if cfg.ConcurrentWorkers < 1 {
		return fmt.Errorf("concurrent_workers must be >= 1")
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if cfg.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be >= 1")
	}
	if cfg.RetryDelayMs < 0 {
		return fmt.Errorf("retry_delay_ms must be >= 0")
	}
	if !strings.HasPrefix(cfg.RepositoryURL, "http://") && !strings.HasPrefix(cfg.RepositoryURL, "https://") {
		return fmt.Errorf("repository_url must be an http(s) URL")
	}
	switch cfg.PrecedencePolicy {
	case "adjacent", "strict":
	default:
		return fmt.Errorf("precedence_policy must be adjacent or strict, got %q", cfg.PrecedencePolicy)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	for _, p := range cfg.ExcludedGroups {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("excluded_groups: invalid pattern %q: %w", p, err)
		}
	}
	return nil
}
