// Package container provides dependency injection and lifecycle management
// for the invoice notifier.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Webhook destination configuration
	Webhook WebhookConfig

	// Storage configuration
	Storage StorageConfig

	// Server configuration
	Server ServerConfig

	// Scheduler configuration
	Scheduler SchedulerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// WebhookConfig holds the delivery destination. An empty URL disables delivery.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	Secret  string
}

// StorageConfig holds artifact storage settings.
type StorageConfig struct {
	// ArtifactDir is the base directory for generated documents
	ArtifactDir string

	// PublicBaseURL prefixes artifact refs when building pdf_url
	PublicBaseURL string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// SchedulerConfig holds retry sweep settings.
type SchedulerConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/invoices.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Webhook: WebhookConfig{
			Timeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			ArtifactDir: "data/artifacts",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxUploadBytes: 10 << 20,
		},
		Scheduler: SchedulerConfig{
			Interval:    60 * time.Second,
			BatchSize:   10,
			MaxAttempts: 10,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.ArtifactDir == "" {
		return fmt.Errorf("storage.artifact_dir is required")
	}
	if c.Scheduler.MaxAttempts <= 0 {
		return fmt.Errorf("scheduler.max_attempts must be positive")
	}
	return nil
}
