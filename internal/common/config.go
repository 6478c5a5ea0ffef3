// Package common provides shared utilities for Drift
package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Drift
type Config struct {
	Environment string          `toml:"environment"`
	Portfolios  []string        `toml:"portfolios"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Rebalance   RebalanceConfig `toml:"rebalance"`
	Auth        AuthConfig      `toml:"auth"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the BadgerHold data directory.
type StorageConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD  EODHDConfig  `toml:"eodhd"`
	Gemini GeminiConfig `toml:"gemini"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// RebalanceConfig holds the rebalancing engine constraints.
// These are operator configuration, not user input.
type RebalanceConfig struct {
	NoiseThreshold          float64 `toml:"noise_threshold"`           // minimum actionable currency amount
	DefaultMaxActions       int     `toml:"default_max_actions"`       // per side, when the request doesn't say
	SellPercentileThreshold float64 `toml:"sell_percentile_threshold"` // sells require percentile >= this
	BuyPercentileThreshold  float64 `toml:"buy_percentile_threshold"`  // buys require percentile <= this
	MaxTimingTickers        int     `toml:"max_timing_tickers"`        // bounds history fetches per request
	AdvisorEnabled          bool    `toml:"advisor_enabled"`
	AdvisorTimeout          string  `toml:"advisor_timeout"`
}

// GetAdvisorTimeout parses and returns the advisor timeout duration
func (c *RebalanceConfig) GetAdvisorTimeout() time.Duration {
	d, err := time.ParseDuration(c.AdvisorTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// AuthConfig holds JWT bearer auth configuration.
// An empty JWTSecret disables authentication.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"`
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultPortfolio returns the first portfolio in the list (the default), or empty string.
func (c *Config) DefaultPortfolio() string {
	if len(c.Portfolios) > 0 {
		return c.Portfolios[0]
	}
	return ""
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Storage: StorageConfig{
			Path: "data",
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
		},
		Rebalance: RebalanceConfig{
			NoiseThreshold:          10.0,
			DefaultMaxActions:       5,
			SellPercentileThreshold: 80.0,
			BuyPercentileThreshold:  20.0,
			MaxTimingTickers:        10,
			AdvisorEnabled:          false,
			AdvisorTimeout:          "30s",
		},
		Auth: AuthConfig{
			TokenExpiry: "24h",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DRIFT_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("DRIFT_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("DRIFT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("DRIFT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("DRIFT_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if v := os.Getenv("DRIFT_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}

	if v := os.Getenv("DRIFT_ADVISOR"); v != "" {
		config.Rebalance.AdvisorEnabled = strings.EqualFold(v, "on") || v == "1" || strings.EqualFold(v, "true")
	}

	if dp := os.Getenv("DRIFT_DEFAULT_PORTFOLIO"); dp != "" {
		// Set as first portfolio (default), preserving any others
		if len(config.Portfolios) == 0 {
			config.Portfolios = []string{dp}
		} else if config.Portfolios[0] != dp {
			filtered := []string{dp}
			for _, p := range config.Portfolios {
				if p != dp {
					filtered = append(filtered, p)
				}
			}
			config.Portfolios = filtered
		}
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// KVReader reads system key/value pairs from storage. Satisfied by the
// internal KV store; declared here so key resolution doesn't depend on the
// storage package.
type KVReader interface {
	GetSystemKV(ctx context.Context, key string) (string, error)
}

// ResolveAPIKey resolves an API key from environment, KV store, or fallback
func ResolveAPIKey(ctx context.Context, store KVReader, name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"eodhd_api_key":  {"EODHD_API_KEY", "DRIFT_EODHD_API_KEY"},
		"gemini_api_key": {"GEMINI_API_KEY", "DRIFT_GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}

	// Environment variables win
	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// Then the KV store
	if store != nil {
		apiKey, err := store.GetSystemKV(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	// Config file fallback
	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or store", name)
}

// ResolveConfigPath returns the config path to load: the explicit path,
// DRIFT_CONFIG, a drift.toml next to the binary, then the development fallback.
func ResolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("DRIFT_CONFIG"); env != "" {
		return env
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "drift.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "config/drift.toml"
}
