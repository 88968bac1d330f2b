// ABOUTME: This file handles configuration management for the sync bridge
// ABOUTME: Loads environment variables and validates backend and sync settings

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the sync bridge
type Config struct {
	// Service configuration
	ServiceName string
	LogLevel    string

	// Backend RPC endpoint configuration
	Backend BackendConfig

	// Durable store configuration
	Store StoreConfig

	// Session and token lifecycle configuration
	Session SessionConfig

	// RPC gateway configuration
	Gateway GatewayConfig

	// Offline mutation queue configuration
	Queue QueueConfig

	// Sync coordinator configuration
	Sync SyncConfig
}

// BackendConfig holds remote backend connection settings
type BackendConfig struct {
	BaseURL            string
	Realm              string
	ServicePrincipalID string
	ServiceSecret      string
}

// StoreConfig holds durable key-value store settings
type StoreConfig struct {
	Path string
}

// SessionConfig holds token lifecycle settings
type SessionConfig struct {
	RefreshBuffer time.Duration
}

// GatewayConfig holds RPC gateway retry and throttle settings
type GatewayConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RateLimit  int
	RateBurst  int
}

// QueueConfig holds offline mutation queue settings
type QueueConfig struct {
	BatchSize  int
	MaxRetries int
}

// SyncConfig holds sync coordinator settings
type SyncConfig struct {
	Interval            time.Duration
	EntityTypes         []string
	RequiredEntityTypes []string
	WarmEntityTypes     []string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnvOrDefault("SERVICE_NAME", "sync-bridge"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),

		Backend: BackendConfig{
			BaseURL:            getEnvOrDefault("BACKEND_BASE_URL", ""),
			Realm:              getEnvOrDefault("BACKEND_REALM", ""),
			ServicePrincipalID: os.Getenv("SERVICE_PRINCIPAL_ID"), // Required from secret
			ServiceSecret:      os.Getenv("SERVICE_SECRET"),       // Required from secret
		},

		Store: StoreConfig{
			Path: getEnvOrDefault("STORE_PATH", "sync-bridge.db"),
		},

		Session: SessionConfig{
			RefreshBuffer: getEnvDurationOrDefault("TOKEN_REFRESH_BUFFER", 5*time.Minute),
		},

		Gateway: GatewayConfig{
			Timeout:    getEnvDurationOrDefault("RPC_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvIntOrDefault("RPC_MAX_RETRIES", 3),
			RateLimit:  getEnvIntOrDefault("RPC_RATE_LIMIT", 20),
		},

		Queue: QueueConfig{
			BatchSize:  getEnvIntOrDefault("QUEUE_BATCH_SIZE", 10),
			MaxRetries: getEnvIntOrDefault("QUEUE_MAX_RETRIES", 3),
		},

		Sync: SyncConfig{
			Interval:            getEnvDurationOrDefault("SYNC_INTERVAL", 30*time.Second),
			EntityTypes:         getEnvListOrDefault("SYNC_ENTITY_TYPES", nil),
			RequiredEntityTypes: getEnvListOrDefault("SYNC_REQUIRED_ENTITY_TYPES", nil),
			WarmEntityTypes:     getEnvListOrDefault("SYNC_WARM_ENTITY_TYPES", nil),
		},
	}

	// Burst allows short spikes above the sustained rate
	cfg.Gateway.RateBurst = cfg.Gateway.RateLimit * 2

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}

	if c.Backend.Realm == "" {
		return fmt.Errorf("BACKEND_REALM is required")
	}

	if c.Backend.ServicePrincipalID == "" {
		return fmt.Errorf("SERVICE_PRINCIPAL_ID is required")
	}

	if c.Backend.ServiceSecret == "" {
		return fmt.Errorf("SERVICE_SECRET is required")
	}

	if c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH must not be empty")
	}

	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("RPC_TIMEOUT must be positive")
	}

	if c.Gateway.MaxRetries <= 0 {
		return fmt.Errorf("RPC_MAX_RETRIES must be positive")
	}

	if c.Gateway.RateLimit <= 0 {
		return fmt.Errorf("RPC_RATE_LIMIT must be positive")
	}

	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be positive")
	}

	if c.Queue.MaxRetries <= 0 {
		return fmt.Errorf("QUEUE_MAX_RETRIES must be positive")
	}

	if c.Sync.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive")
	}

	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns an integer environment variable or default if
// not set or unparsable
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault returns a duration environment variable (e.g.
// "30s", "5m") or default if not set or unparsable
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvListOrDefault returns a comma-separated environment variable as a
// slice, or the default when not set
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	if len(list) == 0 {
		return defaultValue
	}
	return list
}
