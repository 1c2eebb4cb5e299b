// Package common provides shared utilities for Carteira
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Carteira
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Portfolio   PortfolioConfig `toml:"portfolio"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
	Auth        AuthConfig      `toml:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	MaxPDFBytes int64  `toml:"max_pdf_bytes"` // upload size cap
}

// StorageConfig holds SurrealDB connection configuration.
type StorageConfig struct {
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	DataPath  string `toml:"data_path"` // raw file area (charts, uploads)
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Brapi  BrapiConfig  `toml:"brapi"`
	BCB    BCBConfig    `toml:"bcb"`
	Gemini GeminiConfig `toml:"gemini"`
}

// BrapiConfig holds the equity quote provider configuration.
type BrapiConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"` // requests per second
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *BrapiConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// BCBConfig holds the Banco Central PTAX provider configuration.
type BCBConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *BCBConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *GeminiConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// PortfolioConfig holds the NAV / quota engine options.
type PortfolioConfig struct {
	BaseCurrency         string `toml:"base_currency"`
	FXFallbackDays       int    `toml:"fx_fallback_days"`
	InitialShareValue    int    `toml:"initial_share_value"`
	PriceCacheTTLSeconds int    `toml:"price_cache_ttl_seconds"`
	QuoteParallelism     int    `toml:"quote_fetch_parallelism"`
}

// SchedulerConfig holds the daily job times, in the configured timezone.
type SchedulerConfig struct {
	Timezone       string   `toml:"timezone"`
	QuoteSyncTimes []string `toml:"quote_sync_times"` // "HH:MM"
	NAVTime        string   `toml:"nav_time"`
	SnapshotTime   string   `toml:"snapshot_time"`
}

// Location resolves the scheduler timezone, falling back to UTC.
func (c *SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AuthConfig holds JWT authentication configuration.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"` // duration string, default "24h"
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
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			MaxPDFBytes: 20 << 20,
		},
		Storage: StorageConfig{
			Address:   "ws://localhost:8000",
			Username:  "root",
			Password:  "root",
			Namespace: "carteira",
			Database:  "carteira",
			DataPath:  "data",
		},
		Clients: ClientsConfig{
			Brapi: BrapiConfig{
				BaseURL:   "https://brapi.dev/api",
				RateLimit: 5,
				Timeout:   "30s",
			},
			BCB: BCBConfig{
				BaseURL: "https://olinda.bcb.gov.br/olinda/servico/PTAX/versao/v1/odata",
				Timeout: "30s",
			},
			Gemini: GeminiConfig{
				Model:     "gemini-2.0-flash",
				MaxTokens: 32768,
				Timeout:   "2m",
			},
		},
		Portfolio: PortfolioConfig{
			BaseCurrency:         "BRL",
			FXFallbackDays:       7,
			InitialShareValue:    100,
			PriceCacheTTLSeconds: 300,
			QuoteParallelism:     5,
		},
		Scheduler: SchedulerConfig{
			Timezone:       "America/Sao_Paulo",
			QuoteSyncTimes: []string{"10:30", "14:00", "18:30"},
			NAVTime:        "19:00",
			SnapshotTime:   "19:30",
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
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
	normalize(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CARTEIRA_ENV"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("CARTEIRA_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("CARTEIRA_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv("CARTEIRA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if addr := os.Getenv("CARTEIRA_DB_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}
	if user := os.Getenv("CARTEIRA_DB_USER"); user != "" {
		config.Storage.Username = user
	}
	if pass := os.Getenv("CARTEIRA_DB_PASS"); pass != "" {
		config.Storage.Password = pass
	}
	if v := os.Getenv("CARTEIRA_BASE_CURRENCY"); v != "" {
		config.Portfolio.BaseCurrency = strings.ToUpper(v)
	}
	if v := os.Getenv("CARTEIRA_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("BRAPI_API_KEY"); v != "" {
		config.Clients.Brapi.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}
}

// normalize clamps option values into their valid ranges.
func normalize(config *Config) {
	config.Portfolio.BaseCurrency = strings.ToUpper(strings.TrimSpace(config.Portfolio.BaseCurrency))
	if len(config.Portfolio.BaseCurrency) != 3 {
		config.Portfolio.BaseCurrency = "BRL"
	}
	if config.Portfolio.FXFallbackDays <= 0 {
		config.Portfolio.FXFallbackDays = 7
	}
	if config.Portfolio.InitialShareValue <= 0 {
		config.Portfolio.InitialShareValue = 100
	}
	if config.Portfolio.QuoteParallelism <= 0 {
		config.Portfolio.QuoteParallelism = 5
	}
	if config.Server.MaxPDFBytes <= 0 {
		config.Server.MaxPDFBytes = 20 << 20
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
