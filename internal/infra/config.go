package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Job store and dispatch selections.
const (
	JobStorePostgres = "postgres"
	JobStoreMemory   = "memory"

	DispatchInline = "inline"
	DispatchQueue  = "queue"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	VisionStoryAPIKey  string
	VisionStoryBaseURL string

	JobStore    string
	DatabaseURL string

	DispatchMode   string
	AMQPURL        string
	TaskExchange   string
	TaskRoutingKey string
	TaskQueue      string

	StoragePath    string
	MaxUploadBytes int64

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. A missing provider credential is a configuration
// error: the process refuses to start rather than accepting jobs it can
// never run.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "5001"),
		VisionStoryAPIKey:  os.Getenv("VISIONSTORY_API_KEY"),
		VisionStoryBaseURL: getEnv("VISIONSTORY_API_BASE", "https://openapi.visionstory.ai"),
		JobStore:           getEnv("JOB_STORE", JobStoreMemory),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DispatchMode:       getEnv("DISPATCH_MODE", DispatchInline),
		AMQPURL:            os.Getenv("AMQP_URL"),
		TaskExchange:       getEnv("TASK_EXCHANGE", "talkinghead"),
		TaskRoutingKey:     getEnv("TASK_ROUTING_KEY", "generation.jobs"),
		TaskQueue:          getEnv("TASK_QUEUE", "generation-workers"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 50)) * 1024 * 1024,
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 60)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.VisionStoryAPIKey == "" {
		return nil, fmt.Errorf("VISIONSTORY_API_KEY is required")
	}

	switch cfg.JobStore {
	case JobStorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when JOB_STORE=%s", JobStorePostgres)
		}
	case JobStoreMemory:
	default:
		return nil, fmt.Errorf("unsupported JOB_STORE %q", cfg.JobStore)
	}

	switch cfg.DispatchMode {
	case DispatchQueue:
		if cfg.AMQPURL == "" {
			return nil, fmt.Errorf("AMQP_URL is required when DISPATCH_MODE=%s", DispatchQueue)
		}
	case DispatchInline:
	default:
		return nil, fmt.Errorf("unsupported DISPATCH_MODE %q", cfg.DispatchMode)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
