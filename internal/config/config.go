package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Quote      QuoteConfig      `mapstructure:"quote"`
	Poller     PollerConfig     `mapstructure:"poller"`
	Inference  InferenceConfig  `mapstructure:"inference"`
	Logging    LoggingConfig    `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration.
// An empty URL selects the in-memory state store.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// MarketDataConfig holds CoinGecko API configuration
type MarketDataConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// QuoteConfig holds CryptoCompare API configuration
type QuoteConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	// Fallback is the Binance ticker source, asked only when the primary fails
	FallbackEnabled bool   `mapstructure:"fallback_enabled"`
	FallbackBaseURL string `mapstructure:"fallback_base_url"`
}

// PollerConfig holds live price polling configuration
type PollerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	HistorySize int           `mapstructure:"history_size"`
}

// InferenceConfig holds chat-completion API configuration
type InferenceConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Configured reports whether recommendations can be requested
func (c InferenceConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Load reads configuration from environment variables with defaults.
// When path is set the file is read first; environment variables still win.
// Keys map to variables by upper-casing and replacing dots, so
// market_data.base_url is MARKET_DATA_BASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	v.SetDefault("database.migrations_path", "file://migrations")

	v.SetDefault("market_data.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("market_data.api_key", "")
	v.SetDefault("market_data.timeout", 10*time.Second)

	v.SetDefault("quote.base_url", "https://min-api.cryptocompare.com")
	v.SetDefault("quote.timeout", 10*time.Second)
	v.SetDefault("quote.max_retries", 2)
	v.SetDefault("quote.retry_backoff", 250*time.Millisecond)
	v.SetDefault("quote.fallback_enabled", false)
	v.SetDefault("quote.fallback_base_url", "https://api.binance.com")

	v.SetDefault("poller.interval", 10*time.Second)
	v.SetDefault("poller.history_size", 30)

	v.SetDefault("inference.api_key", "")
	v.SetDefault("inference.model", "gpt-4o-mini")
	v.SetDefault("inference.base_url", "https://api.openai.com/v1")
	v.SetDefault("inference.timeout", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate ensures configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("market data base URL is required")
	}

	if c.Quote.BaseURL == "" {
		return fmt.Errorf("quote base URL is required")
	}

	if c.Quote.FallbackEnabled && c.Quote.FallbackBaseURL == "" {
		return fmt.Errorf("quote fallback base URL is required when the fallback is enabled")
	}

	if c.Poller.Interval < time.Second {
		return fmt.Errorf("poller interval must be at least 1 second")
	}

	if c.Poller.Interval > 24*time.Hour {
		return fmt.Errorf("poller interval must be less than 24 hours")
	}

	if c.Poller.HistorySize < 1 {
		return fmt.Errorf("poller history size must be positive: %d", c.Poller.HistorySize)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}
