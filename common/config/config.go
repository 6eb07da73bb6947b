package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service  ServiceConfig
	Engine   EngineConfig
	Webhook  WebhookConfig
	Redis    RedisConfig
	Database DatabaseConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// EngineConfig holds workflow engine settings
type EngineConfig struct {
	// Maximum number of jobs executing at the same time
	MaxConcurrent int

	// Default timeout applied to jobs whose definition carries none
	DefaultJobTimeout time.Duration

	// Maximum queued jobs; 0 means unbounded
	MaxQueueLength int

	// Safety bound for cyclic graph executions
	GraphMaxIterations int

	// Fail reference resolution on missing keys instead of passing nil
	StrictResolution bool
}

// WebhookConfig holds webhook delivery settings
type WebhookConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryDelays []time.Duration
}

// RedisConfig holds Redis connection settings for the checkpoint store
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int

	// How long a checkpoint outlives its job
	CheckpointTTL time.Duration
}

// DatabaseConfig holds Postgres settings for the optional job archive
type DatabaseConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Engine: EngineConfig{
			MaxConcurrent:      getEnvInt("MAX_CONCURRENT_JOBS", 4),
			DefaultJobTimeout:  getEnvDuration("DEFAULT_JOB_TIMEOUT", 5*time.Minute),
			MaxQueueLength:     getEnvInt("MAX_QUEUE_LENGTH", 0),
			GraphMaxIterations: getEnvInt("GRAPH_MAX_ITERATIONS", 50),
			StrictResolution:   getEnvBool("STRICT_RESOLUTION", false),
		},
		Webhook: WebhookConfig{
			Timeout:     getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts: getEnvInt("WEBHOOK_MAX_ATTEMPTS", 3),
			RetryDelays: getEnvDurationSlice("WEBHOOK_RETRY_DELAYS", []time.Duration{
				10 * time.Second,
				30 * time.Second,
				60 * time.Second,
			}),
		},
		Redis: RedisConfig{
			Enabled:       getEnvBool("REDIS_ENABLED", false),
			Addr:          getEnv("REDIS_ADDR", "localhost:6379"),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			CheckpointTTL: getEnvDuration("CHECKPOINT_TTL", 24*time.Hour),
		},
		Database: DatabaseConfig{
			Enabled:     getEnvBool("JOB_ARCHIVE_ENABLED", false),
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "docuflow"),
			User:        getEnv("POSTGRES_USER", "docuflow"),
			Password:    getEnv("POSTGRES_PASSWORD", "docuflow"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Engine.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent_jobs must be >= 1")
	}

	if c.Engine.GraphMaxIterations < 1 {
		return fmt.Errorf("graph_max_iterations must be >= 1")
	}

	if c.Webhook.MaxAttempts < 1 {
		return fmt.Errorf("webhook_max_attempts must be >= 1")
	}

	if c.Database.Enabled && c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvDurationSlice(key string, defaultValue []time.Duration) []time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		duration, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, duration)
	}
	return out
}
