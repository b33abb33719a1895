package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort  string
	AppMode  string
	AppStore string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	HubActorNumber string
	HubActorRole   string

	BundleMaxMessages             int
	AggregationsBundleMaxMessages int

	RetentionPeriod    time.Duration
	RetentionInterval  time.Duration
	RetentionBatchSize int
	RetentionEnabled   bool

	RateLimitPeek    int
	RateLimitDequeue int
	RateLimitWindow  time.Duration
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:  getEnv("APP_PORT", "8080"),
		AppMode:  getEnv("APP_MODE", "debug"),
		AppStore: getEnv("APP_STORE", StorePostgres),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "market_gateway"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3Region:    getEnv("S3_REGION", "eu-north-1"),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),

		HubActorNumber: getEnv("HUB_ACTOR_NUMBER", "5790001330583"),
		HubActorRole:   getEnv("HUB_ACTOR_ROLE", "DDZ"),

		BundleMaxMessages:             getEnvAsInt("BUNDLE_MAX_MESSAGES", 10000),
		AggregationsBundleMaxMessages: getEnvAsInt("AGGREGATIONS_BUNDLE_MAX_MESSAGES", 1),

		RetentionPeriod:    getEnvAsDuration("RETENTION_PERIOD", 30*24*time.Hour),
		RetentionInterval:  getEnvAsDuration("RETENTION_INTERVAL", time.Hour),
		RetentionBatchSize: getEnvAsInt("RETENTION_BATCH_SIZE", 500),
		RetentionEnabled:   getEnvAsBool("RETENTION_ENABLED", true),

		RateLimitPeek:    getEnvAsInt("RATE_LIMIT_PEEK", 120),
		RateLimitDequeue: getEnvAsInt("RATE_LIMIT_DEQUEUE", 120),
		RateLimitWindow:  getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
}

// Validate reports settings that would make the service misbehave.
func (c *Config) Validate() error {
	if c.AppStore != StorePostgres && c.AppStore != StoreMemory {
		return fmt.Errorf("APP_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.AppStore)
	}
	if c.BundleMaxMessages < 1 || c.AggregationsBundleMaxMessages < 1 {
		return fmt.Errorf("bundle sizes must be positive")
	}
	if c.RetentionBatchSize < 1 {
		return fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}
	if c.RetentionInterval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
