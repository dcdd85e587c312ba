package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string
	DBTimeout   time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort        string
	ServiceApiPort string

	// Email
	SmtpHost          string
	SmtpPort          int
	SmtpUsername      string
	SmtpPassword      string
	SmtpFromAddress   string
	AdminContactEmail string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	ImageBaseS3URL     string
	ImageMaxDimension  int
	ImageMaxSizeMB     int
	UploadURLTTL       time.Duration

	// Listings
	GetCacheTTL            time.Duration
	CascadeTimeout         time.Duration
	DefaultRejectionReason string
	DefaultPageSize        int
	MaxPageSize            int

	// Rate Limiting
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "estatehub")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@estatehub.example.com")
	cfg.AdminContactEmail = getEnv("ADMIN_CONTACT_EMAIL", "admin@estatehub.example.com")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.ImageBaseS3URL = getEnv("IMAGE_BASE_S3_URL", "")
	cfg.DefaultRejectionReason = getEnv("DEFAULT_REJECTION_REASON", "Rejected by admin")

	if cfg.RedisDB, err = getIntEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JwtTTL, err = getSecondsEnv("JWT_TTL_SECONDS", 3600); err != nil {
		return nil, err
	}
	if cfg.DBTimeout, err = getSecondsEnv("DB_TIMEOUT_SECONDS", 10); err != nil {
		return nil, err
	}
	if cfg.SmtpPort, err = getIntEnv("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.ImageMaxDimension, err = getIntEnv("IMAGE_MAX_DIMENSION", 2048); err != nil {
		return nil, err
	}
	if cfg.ImageMaxSizeMB, err = getIntEnv("IMAGE_MAX_SIZE_MB", 10); err != nil {
		return nil, err
	}
	if cfg.UploadURLTTL, err = getSecondsEnv("UPLOAD_URL_TTL_SECONDS", 900); err != nil {
		return nil, err
	}
	if cfg.GetCacheTTL, err = getSecondsEnv("GET_CACHE_TTL_SECONDS", 60); err != nil {
		return nil, err
	}
	if cfg.CascadeTimeout, err = getSecondsEnv("CASCADE_TIMEOUT_SECONDS", 15); err != nil {
		return nil, err
	}
	if cfg.DefaultPageSize, err = getIntEnv("DEFAULT_PAGE_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.MaxPageSize, err = getIntEnv("MAX_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitBucketSize, err = getIntEnv("RATE_LIMIT_BUCKET_SIZE", 8); err != nil {
		return nil, err
	}
	if cfg.RateLimitRefillRate, err = getIntEnv("RATE_LIMIT_REFILL_RATE", 4); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getRequiredEnv(key string) (string, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return "", fmt.Errorf("missing required environment variable: %s", key)
	}
	return value, nil
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getSecondsEnv(key string, defaultSeconds int64) (time.Duration, error) {
	seconds, err := strconv.ParseInt(getEnv(key, strconv.FormatInt(defaultSeconds, 10)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(seconds) * time.Second, nil
}
