package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	MongoDB    MongoDBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	S3         S3Config
	OTEL       OTELConfig
	Logger     LoggerConfig
	Reconciler ReconcilerConfig
	Seed       SeedConfig
}

// SeedConfig holds the bootstrap superadmin used by the seed command
type SeedConfig struct {
	SuperAdminName     string
	SuperAdminEmail    string
	SuperAdminPassword string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	MaxUploadSizeMB int64
	IdempotencyTTL  time.Duration
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
}

// JWTConfig holds token signing configuration
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	BcryptCost         int
}

// S3Config holds object storage configuration for customer documents
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Enabled   bool
}

// OTELConfig holds OpenTelemetry exporter configuration
type OTELConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	InstanceID     string
	Token          string
	// SampleRatio is the fraction of root traces kept, 0..1.
	SampleRatio float64
	// Insecure sends to the collector over plain HTTP.
	Insecure bool
}

// LoggerConfig holds structured logging configuration
type LoggerConfig struct {
	Level      string
	Format     string // "text" or "json"
	OutputPath string // "stdout", "stderr" or a file path
}

// ReconcilerConfig holds the subscription lifecycle job configuration
type ReconcilerConfig struct {
	Enabled bool
	// Timezone is the operational zone used for calendar day boundaries.
	Timezone string
	// Schedule is a 5-field cron expression evaluated in Timezone.
	Schedule string
	// Every replaces Schedule with a fixed interval when set (demo cadence).
	Every          time.Duration
	StartImmediate bool
	RunTimeout     time.Duration
	Workers        int
	// HorizonDays is how far ahead the expiring-soon window sits.
	HorizonDays int
	// CatchUpOverdue widens the expire predicate to every end date up to the
	// end of today, so days missed while the process was down are recovered.
	CatchUpOverdue bool
	// CompareAndSwap only writes "expired" while the stored status is still
	// active or pending.
	CompareAndSwap bool
	LockTTL        time.Duration
}

// Location resolves the configured operational timezone.
func (r ReconcilerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILER_TIMEZONE %q: %w", r.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from environment variables
// It attempts to load from .env file first, then falls back to system env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "5000"),
			MaxUploadSizeMB: getEnvAsInt64("MAX_UPLOAD_SIZE_MB", 10),
			IdempotencyTTL:  getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "isp_management"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			AccessTokenExpiry:  getEnvAsDuration("JWT_EXPIRE", 15*time.Minute),
			RefreshTokenExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRE", 7*24*time.Hour),
			BcryptCost:         int(getEnvAsInt64("BCRYPT_COST", 10)),
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", "http://localhost:8333"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Bucket:    getEnv("S3_BUCKET", "customer-documents"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Enabled:   getEnvAsBool("S3_ENABLED", true),
		},
		OTEL: OTELConfig{
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "isp-admin"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("OTEL_ENVIRONMENT", "development"),
			InstanceID:     getEnv("OTEL_INSTANCE_ID", ""),
			Token:          getEnv("OTEL_TOKEN", ""),
			SampleRatio:    getEnvAsFloat64("OTEL_SAMPLE_RATIO", 1),
			Insecure:       getEnvAsBool("OTEL_INSECURE", false),
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "text"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Reconciler: ReconcilerConfig{
			Enabled:        getEnvAsBool("RECONCILER_ENABLED", true),
			Timezone:       getEnv("RECONCILER_TIMEZONE", "Asia/Karachi"),
			Schedule:       getEnv("RECONCILER_SCHEDULE", "0 0 * * *"),
			Every:          getEnvAsDuration("RECONCILER_EVERY", 0),
			StartImmediate: getEnvAsBool("RECONCILER_START_IMMEDIATELY", false),
			RunTimeout:     getEnvAsDuration("RECONCILER_RUN_TIMEOUT", 10*time.Minute),
			Workers:        int(getEnvAsInt64("RECONCILER_WORKERS", 8)),
			HorizonDays:    int(getEnvAsInt64("RECONCILER_HORIZON_DAYS", 2)),
			CatchUpOverdue: getEnvAsBool("RECONCILER_CATCH_UP_OVERDUE", true),
			CompareAndSwap: getEnvAsBool("RECONCILER_COMPARE_AND_SWAP", true),
			LockTTL:        getEnvAsDuration("RECONCILER_LOCK_TTL", 15*time.Minute),
		},
		Seed: SeedConfig{
			SuperAdminName:     getEnv("SUPERADMIN_NAME", "Super Admin"),
			SuperAdminEmail:    getEnv("SUPERADMIN_EMAIL", "superadmin@isp.local"),
			SuperAdminPassword: getEnv("SUPERADMIN_PASSWORD", ""),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.MongoDB.URI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if _, err := c.Reconciler.Location(); err != nil {
		return err
	}
	if c.Reconciler.Workers < 1 {
		return fmt.Errorf("RECONCILER_WORKERS must be at least 1")
	}
	if c.Reconciler.HorizonDays < 1 {
		return fmt.Errorf("RECONCILER_HORIZON_DAYS must be at least 1")
	}
	if c.Reconciler.RunTimeout <= 0 {
		return fmt.Errorf("RECONCILER_RUN_TIMEOUT must be positive")
	}
	if c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be between 0 and 1")
	}
	if c.Reconciler.Every < 0 {
		return fmt.Errorf("RECONCILER_EVERY must not be negative")
	}
	if c.Reconciler.Every == 0 && len(strings.Fields(c.Reconciler.Schedule)) != 5 {
		return fmt.Errorf("RECONCILER_SCHEDULE must be a 5-field cron expression, got %q", c.Reconciler.Schedule)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt64 retrieves an environment variable as int64 or returns a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("15m", "168h").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
