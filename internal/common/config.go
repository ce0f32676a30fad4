// Package common provides shared utilities for Pulse
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Pulse
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Valuation   ValuationConfig `toml:"valuation"`
	Alerts      AlertsConfig    `toml:"alerts"`
	Auth        AuthConfig      `toml:"auth"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend   string `toml:"backend"` // "file" (default) or "surrealdb"
	Path      string `toml:"path"`    // file backend root
	Address   string `toml:"address"` // surrealdb ws address
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// ClientsConfig holds market data provider configuration
type ClientsConfig struct {
	AlphaVantage ProviderConfig `toml:"alphavantage"`
	CoinGecko    ProviderConfig `toml:"coingecko"`
}

// ProviderConfig holds connection settings for a market data provider.
type ProviderConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"` // requests per second
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *ProviderConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ValuationConfig holds valuation defaults.
type ValuationConfig struct {
	VsCurrency   string `toml:"vs_currency"`
	DefaultRange string `toml:"default_range"`
	WarmSchedule string `toml:"warm_schedule"` // cron spec for stock history warm-up
}

// AlertsConfig holds price alert configuration.
type AlertsConfig struct {
	ThresholdPct  float64     `toml:"threshold_pct"`
	Schedule      string      `toml:"schedule"`
	ResetSchedule string      `toml:"reset_schedule"`
	WebhookURL    string      `toml:"webhook_url"`
	Email         EmailConfig `toml:"email"`
}

// EmailConfig configures the SendGrid notification sink.
type EmailConfig struct {
	APIKey    string `toml:"api_key"`
	FromEmail string `toml:"from_email"`
	FromName  string `toml:"from_name"`
	To        string `toml:"to"`
}

// Enabled reports whether enough is configured to send email.
func (c *EmailConfig) Enabled() bool {
	return c.APIKey != "" && c.FromEmail != "" && c.To != ""
}

// AuthConfig holds bearer token configuration.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	Issuer    string `toml:"issuer"`
	DevUser   string `toml:"dev_user"` // when set, unauthenticated requests act as this user
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"` // "console" or "json"
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend:   "file",
			Path:      "data",
			Address:   "ws://localhost:8000/rpc",
			Namespace: "pulse",
			Database:  "pulse",
			Username:  "root",
			Password:  "root",
		},
		Clients: ClientsConfig{
			AlphaVantage: ProviderConfig{
				BaseURL:   "https://www.alphavantage.co",
				RateLimit: 5,
				Timeout:   "30s",
			},
			CoinGecko: ProviderConfig{
				BaseURL:   "https://api.coingecko.com/api/v3",
				RateLimit: 10,
				Timeout:   "30s",
			},
		},
		Valuation: ValuationConfig{
			VsCurrency:   "usd",
			DefaultRange: "30d",
			WarmSchedule: "@every 6h",
		},
		Alerts: AlertsConfig{
			ThresholdPct:  5,
			Schedule:      "@every 15m",
			ResetSchedule: "@daily",
			Email: EmailConfig{
				FromName: "Pulse",
			},
		},
		Auth: AuthConfig{
			JWTSecret: "dev-jwt-secret-change-in-production",
			Issuer:    "pulse-server",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"console"},
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// .env is optional; real environment variables always win
	_ = godotenv.Load()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
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

	config.Storage.Backend = strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	if config.Storage.Backend == "" {
		config.Storage.Backend = "file"
	}
	config.Valuation.VsCurrency = strings.ToLower(config.Valuation.VsCurrency)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PULSE_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("PULSE_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("PULSE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("PULSE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("PULSE_DATA_PATH"); path != "" {
		config.Storage.Path = filepath.Clean(path)
	}

	if backend := os.Getenv("PULSE_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}

	if addr := os.Getenv("PULSE_STORAGE_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}

	if v := os.Getenv("PULSE_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}

	if v := os.Getenv("PULSE_DEV_USER"); v != "" {
		config.Auth.DevUser = v
	}

	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		config.Clients.AlphaVantage.APIKey = v
	}

	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		config.Clients.CoinGecko.APIKey = v
	}

	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		config.Alerts.Email.APIKey = v
	}

	if v := os.Getenv("PULSE_ALERT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			config.Alerts.ThresholdPct = f
		}
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ValidateRequired returns the names of settings that must be present
// before the server can run against live providers.
func (c *Config) ValidateRequired() []string {
	var missing []string
	if c.Clients.AlphaVantage.APIKey == "" {
		missing = append(missing, "clients.alphavantage.api_key")
	}
	if c.IsProduction() && (c.Auth.JWTSecret == "" || strings.HasPrefix(c.Auth.JWTSecret, "dev-")) {
		missing = append(missing, "auth.jwt_secret")
	}
	if c.Storage.Backend == "surrealdb" && c.Storage.Address == "" {
		missing = append(missing, "storage.address")
	}
	return missing
}
