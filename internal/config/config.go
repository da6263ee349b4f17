package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	HTTP     HTTPConfig
	OpenAI   OpenAIConfig
	Redis    RedisConfig
	Log      LogConfig
	Workflow WorkflowConfig
}

type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerMinute int
}

type RedisConfig struct {
	StreamsURL   string
	MemoryURL    string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ResultTTL    time.Duration
}

type LogConfig struct {
	Level      string
	Format     string
	Output     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type WorkflowConfig struct {
	MaxBatchSize    int
	MaxWorkers      int
	LookupTimeout   time.Duration
	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		HTTP: HTTPConfig{
			Port:         getEnvInt("PORT", 8080),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:            os.Getenv("OPENAI_API_KEY"),
			BaseURL:           getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:             getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens:         getEnvInt("OPENAI_MAX_TOKENS", 1024),
			Temperature:       getEnvFloat("OPENAI_TEMPERATURE", 0.1),
			Timeout:           getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
			MaxRetries:        getEnvInt("OPENAI_MAX_RETRIES", 3),
			RetryDelay:        getEnvDuration("OPENAI_RETRY_DELAY", 2*time.Second),
			RequestsPerMinute: getEnvInt("OPENAI_REQUESTS_PER_MINUTE", 60),
		},
		Redis: RedisConfig{
			StreamsURL:   getEnv("REDIS_STREAMS_URL", "redis://localhost:6379/0"),
			MemoryURL:    getEnv("REDIS_MEMORY_URL", "redis://localhost:6379/1"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			ResultTTL:    getEnvDuration("REDIS_RESULT_TTL", 6*time.Hour),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		},
		Workflow: WorkflowConfig{
			MaxBatchSize:    getEnvInt("WORKFLOW_MAX_BATCH_SIZE", 100),
			MaxWorkers:      getEnvInt("WORKFLOW_MAX_WORKERS", 10),
			LookupTimeout:   getEnvDuration("WORKFLOW_LOOKUP_TIMEOUT", 5*time.Second),
			ShutdownTimeout: getEnvDuration("WORKFLOW_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.OpenAI.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.HTTP.Port)
	}

	if c.Workflow.MaxWorkers < 1 {
		return fmt.Errorf("WORKFLOW_MAX_WORKERS must be at least 1, got %d", c.Workflow.MaxWorkers)
	}

	if c.Workflow.MaxBatchSize < 1 {
		return fmt.Errorf("WORKFLOW_MAX_BATCH_SIZE must be at least 1, got %d", c.Workflow.MaxBatchSize)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}

	// Bare integers are read as seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return fallback
}
