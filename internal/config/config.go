// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the files API server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Remote file store. Both may be empty at startup; the registry reports
	// a configuration error on first tenant access instead.
	FilesAPIBaseURL string
	FilesAPIKey     string
	BackendTimeout  time.Duration

	// Auth
	JWTSecret string

	// Limits
	MaxBodyBytes int64
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:     envOr("METRICS_ADDR", ":9090"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
		FilesAPIBaseURL: envOr("FILES_API_BASE_URL", ""),
		FilesAPIKey:     envOr("PRISMA_MCP_KEY", ""),
		BackendTimeout:  envDuration("BACKEND_TIMEOUT", 30*time.Second),
		JWTSecret:       envOr("JWT_SECRET", ""),
		MaxBodyBytes:    envInt64("MAX_BODY_BYTES", 10*1024*1024), // 10MB default
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// StoreConfig holds the reference file store configuration.
type StoreConfig struct {
	ListenAddr  string
	MetricsAddr string

	LogLevel  string
	LogFormat string

	// Shared service credential expected from gateways.
	APIKey string

	// Storage backend ("local" or "s3", default: "local")
	StorageBackend   string
	LocalStoragePath string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	MaxBodyBytes int64
}

// LoadStore reads the file store configuration from environment variables.
func LoadStore() (*StoreConfig, error) {
	cfg := &StoreConfig{
		ListenAddr:       envOr("FILESTORE_ADDR", ":8081"),
		MetricsAddr:      envOr("FILESTORE_METRICS_ADDR", ":9091"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        envOr("LOG_FORMAT", "json"),
		APIKey:           envOr("FILESTORE_KEY", envOr("PRISMA_MCP_KEY", "")),
		StorageBackend:   envOr("STORAGE_BACKEND", "local"),
		LocalStoragePath: envOr("LOCAL_STORAGE_PATH", "/data/files"),
		S3Endpoint:       envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:         envOr("S3_BUCKET", "project-files"),
		S3AccessKey:      envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:      envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:         envOr("S3_REGION", "us-east-1"),
		S3UseSSL:         envBool("S3_USE_SSL", false),
		MaxBodyBytes:     envInt64("MAX_BODY_BYTES", 10*1024*1024),
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("FILESTORE_KEY is required")
	}
	switch cfg.StorageBackend {
	case "local", "s3":
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
