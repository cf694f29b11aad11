// Package config loads the kindred API configuration from YAML files with
// environment-variable expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the kindred API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Search    SearchConfig    `yaml:"search"`
	Places    ServiceConfig   `yaml:"places"`
	Geocode   ServiceConfig   `yaml:"geocode"`
	History   ServiceConfig   `yaml:"history"`
	Reasoning ReasoningConfig `yaml:"reasoning"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RateLimitConfig holds search admission settings.
type RateLimitConfig struct {
	MaxSearches int `yaml:"max_searches"` // per window, per identity
	WindowHours int `yaml:"window_hours"`
}

// SearchConfig holds pipeline tuning settings.
type SearchConfig struct {
	PageSize      int     `yaml:"page_size"`
	MaxCandidates int     `yaml:"max_candidates"`
	KeywordCap    int     `yaml:"keyword_cap"`
	PenaltyFactor float64 `yaml:"penalty_factor"`
}

// ServiceConfig holds settings for a plain REST collaborator.
type ServiceConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ReasoningConfig holds settings for the reasoning/vision provider.
type ReasoningConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	Model           string `yaml:"model"`
	ImageTimeoutSec int    `yaml:"image_timeout_sec"`
	PoolSize        int    `yaml:"pool_size"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// The pipeline runs inside the request: directory pagination plus
		// enrichment needs more headroom than a plain CRUD handler.
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.RateLimit.MaxSearches <= 0 {
		c.RateLimit.MaxSearches = 10
	}
	if c.RateLimit.WindowHours <= 0 {
		c.RateLimit.WindowHours = 12
	}
	if c.Search.PageSize <= 0 {
		c.Search.PageSize = 10
	}
	if c.Search.MaxCandidates <= 0 {
		c.Search.MaxCandidates = 60
	}
	if c.Search.KeywordCap <= 0 {
		c.Search.KeywordCap = 5
	}
	if c.Search.PenaltyFactor <= 0 || c.Search.PenaltyFactor >= 1 {
		c.Search.PenaltyFactor = 0.65
	}
	if c.Places.TimeoutSec <= 0 {
		c.Places.TimeoutSec = 10
	}
	if c.Geocode.TimeoutSec <= 0 {
		c.Geocode.TimeoutSec = 5
	}
	if c.History.TimeoutSec <= 0 {
		c.History.TimeoutSec = 5
	}
	if c.Reasoning.ImageTimeoutSec <= 0 {
		c.Reasoning.ImageTimeoutSec = 3
	}
	if c.Reasoning.PoolSize <= 0 {
		c.Reasoning.PoolSize = 4
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "kindred:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Places.BaseURL == "" {
		return fmt.Errorf("places.base_url is required")
	}
	if c.Geocode.BaseURL == "" {
		return fmt.Errorf("geocode.base_url is required")
	}
	if c.Reasoning.Model == "" {
		return fmt.Errorf("reasoning.model is required")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
