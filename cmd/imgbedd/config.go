package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dukerupert/imgbed/paste"
	"github.com/dukerupert/imgbed/telegram"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Host        string
	Port        int
	Environment string
	LogLevel    string

	// Storage settings
	StorageBackend  string
	TelegramToken   string
	TelegramChatID  string
	TelegramAPIURL  string
	PreserveImages  bool
	PasteBaseURL    string
	UpstreamTimeout time.Duration

	// Metadata settings
	MetadataProvider string
	MetadataTimeout  time.Duration
	MetadataS3Bucket string
	MetadataS3Region string
	MetadataS3Prefix string

	// Database settings
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	// Worker settings
	WorkerCount     int
	WorkerQueueSize int
	ShutdownTimeout time.Duration

	// Upload rate limiting
	UploadRateLimit float64
	UploadRateBurst int
}

// LoadConfig loads configuration from environment variables.
func LoadConfig(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		// Server settings
		Host:        envString(getenv, "SERVER_HOST", "localhost"),
		Port:        envInt(getenv, "SERVER_PORT", 8080),
		Environment: envString(getenv, "ENVIRONMENT", "dev"),
		LogLevel:    envString(getenv, "LOG_LEVEL", "info"),

		// Storage settings
		StorageBackend:  envString(getenv, "STORAGE_BACKEND", "telegram"),
		TelegramToken:   envString(getenv, "TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:  envString(getenv, "TELEGRAM_CHAT_ID", ""),
		TelegramAPIURL:  envString(getenv, "TELEGRAM_API_URL", telegram.DefaultAPIURL),
		PreserveImages:  envBool(getenv, "PRESERVE_IMAGES", false),
		PasteBaseURL:    envString(getenv, "PASTE_BASE_URL", paste.DefaultBaseURL),
		UpstreamTimeout: envDuration(getenv, "UPSTREAM_TIMEOUT", 60*time.Second),

		// Metadata settings
		MetadataProvider: envString(getenv, "METADATA_PROVIDER", "none"),
		MetadataTimeout:  envDuration(getenv, "METADATA_TIMEOUT", 10*time.Second),
		MetadataS3Bucket: envString(getenv, "METADATA_S3_BUCKET", ""),
		MetadataS3Region: envString(getenv, "METADATA_S3_REGION", "us-east-1"),
		MetadataS3Prefix: envString(getenv, "METADATA_S3_PREFIX", "metadata/"),

		// Database settings
		DBUser:     envString(getenv, "DB_USER", "postgres"),
		DBPassword: envString(getenv, "DB_PASSWORD", ""),
		DBHost:     envString(getenv, "DB_HOSTNAME", "localhost"),
		DBPort:     envString(getenv, "DB_PORT", "5432"),
		DBName:     envString(getenv, "DB_NAME", "postgres"),

		// Worker settings
		WorkerCount:     envInt(getenv, "WORKER_COUNT", 2),
		WorkerQueueSize: envInt(getenv, "WORKER_QUEUE_SIZE", 256),
		ShutdownTimeout: envDuration(getenv, "SHUTDOWN_TIMEOUT", 10*time.Second),

		// Upload rate limiting
		UploadRateLimit: envFloat(getenv, "UPLOAD_RATE_LIMIT", 2),
		UploadRateBurst: envInt(getenv, "UPLOAD_RATE_BURST", 10),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// validate checks backend requirements. Outside production a telegram
// backend without credentials is allowed so the server can report the
// configuration error per request.
func (c *Config) validate() error {
	switch c.StorageBackend {
	case "telegram":
		if c.IsProduction() {
			if c.TelegramToken == "" {
				return errors.New("TELEGRAM_BOT_TOKEN must be set in production environment")
			}
			if c.TelegramChatID == "" {
				return errors.New("TELEGRAM_CHAT_ID must be set in production environment")
			}
		}
	case "paste":
		if c.PasteBaseURL == "" {
			return errors.New("PASTE_BASE_URL must be set for the paste backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.MetadataProvider {
	case "none", "memory", "postgres":
	case "s3":
		if c.MetadataS3Bucket == "" {
			return errors.New("METADATA_S3_BUCKET must be set for the s3 metadata provider")
		}
	default:
		return fmt.Errorf("unknown METADATA_PROVIDER %q", c.MetadataProvider)
	}

	if c.UploadRateLimit < 0 {
		return errors.New("UPLOAD_RATE_LIMIT must not be negative")
	}

	return nil
}

// Helper functions for loading environment variables with defaults.

func envString(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(getenv func(string) string, key string, defaultValue int) int {
	if value := getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func envFloat(getenv func(string) string, key string, defaultValue float64) float64 {
	if value := getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func envBool(getenv func(string) string, key string, defaultValue bool) bool {
	if value := getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func envDuration(getenv func(string) string, key string, defaultValue time.Duration) time.Duration {
	if value := getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
