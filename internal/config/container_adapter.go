package config

import (
	"github.com/garyjia/invoice-notifier/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Webhook: container.WebhookConfig{
			URL:     c.Webhook.URL,
			Timeout: c.Webhook.Timeout,
			Secret:  c.Webhook.Secret,
		},
		Storage: container.StorageConfig{
			ArtifactDir:   c.Storage.ArtifactDir,
			PublicBaseURL: c.Storage.PublicBaseURL,
		},
		Server: container.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			MaxUploadBytes: c.Server.MaxUploadBytes,
		},
		Scheduler: container.SchedulerConfig{
			Interval:    c.Scheduler.Interval,
			BatchSize:   c.Scheduler.BatchSize,
			MaxAttempts: c.Scheduler.MaxAttempts,
		},
	}
}
