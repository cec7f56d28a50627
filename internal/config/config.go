package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Bot front-end modes.
const (
	BotModeOff     = "off"
	BotModePoll    = "poll"
	BotModeWebhook = "webhook"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	S3       S3Config
	Telegram TelegramConfig
	Kafka    KafkaConfig
	Cache    CacheConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
	AutoSchema      bool
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds the optional API key guarding the HTTP API.
type AuthConfig struct {
	APIKey string
}

// S3Config holds AWS S3 configuration for catalog files.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "catalog/")
}

// TelegramConfig holds Bot API and payment settings.
type TelegramConfig struct {
	APIBase        string
	BotToken       string
	ProviderToken  string
	Currency       string
	CurrencyDigits int32
	RequestTimeout time.Duration
	BotMode        string
	PollTimeout    time.Duration
	WebhookSecret  string
	WebAppURL      string
}

// KafkaConfig holds order event publishing settings. Publishing is disabled
// when Brokers is empty.
type KafkaConfig struct {
	Brokers        []string
	Topic          string
	PublishTimeout time.Duration
}

// CacheConfig holds product read cache settings.
type CacheConfig struct {
	ProductSize int
	ProductTTL  time.Duration
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; variables already set in
// the environment take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "storefront"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
			AutoSchema:      getEnvAsBool("DB_AUTO_SCHEMA", false),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "us-east-1"),
			Prefix:  getEnv("S3_PREFIX", "catalog/"),
		},
		Telegram: TelegramConfig{
			APIBase:        strings.TrimRight(getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"), "/"),
			BotToken:       getEnv("TELEGRAM_BOT_TOKEN", ""),
			ProviderToken:  getEnv("PAYMENT_PROVIDER_TOKEN", ""),
			Currency:       getEnv("PAYMENT_CURRENCY", "RUB"),
			CurrencyDigits: int32(getEnvAsInt("PAYMENT_CURRENCY_DIGITS", 2)),
			RequestTimeout: getEnvAsDuration("TELEGRAM_TIMEOUT", 10*time.Second),
			BotMode:        getEnv("BOT_MODE", BotModePoll),
			PollTimeout:    getEnvAsDuration("BOT_POLL_TIMEOUT", 30*time.Second),
			WebhookSecret:  getEnv("BOT_WEBHOOK_SECRET", ""),
			WebAppURL:      getEnv("TELEGRAM_WEBAPP_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:        splitCSV(getEnv("KAFKA_BROKERS", "")),
			Topic:          getEnv("KAFKA_TOPIC", "storefront.orders"),
			PublishTimeout: getEnvAsDuration("KAFKA_PUBLISH_TIMEOUT", 2*time.Second),
		},
		Cache: CacheConfig{
			ProductSize: getEnvAsInt("PRODUCT_CACHE_SIZE", 512),
			ProductTTL:  getEnvAsDuration("PRODUCT_CACHE_TTL", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	switch c.Telegram.BotMode {
	case BotModeOff, BotModePoll, BotModeWebhook:
	default:
		return fmt.Errorf("invalid bot mode: %s (must be off, poll, or webhook)", c.Telegram.BotMode)
	}

	if c.Telegram.Currency == "" {
		return fmt.Errorf("payment currency is required")
	}

	if c.Telegram.CurrencyDigits < 0 || c.Telegram.CurrencyDigits > 4 {
		return fmt.Errorf("invalid currency digits: %d", c.Telegram.CurrencyDigits)
	}

	if c.Telegram.RequestTimeout <= 0 {
		return fmt.Errorf("telegram request timeout must be positive")
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.PublishTimeout <= 0 {
		return fmt.Errorf("kafka publish timeout must be positive")
	}

	if c.Cache.ProductSize < 1 {
		return fmt.Errorf("product cache size must be at least 1")
	}

	return nil
}

// Validate checks the settings needed to talk to the Bot API.
func (c *TelegramConfig) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}
	if c.APIBase == "" {
		return fmt.Errorf("telegram API base URL is required")
	}
	if c.BotMode == BotModeWebhook && c.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required in webhook mode")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration syntax ("5s") or plain seconds ("5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
