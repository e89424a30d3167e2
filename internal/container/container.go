package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-notifier/internal/application/port"
	"github.com/garyjia/invoice-notifier/internal/application/service"
	"github.com/garyjia/invoice-notifier/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoice-notifier/internal/infrastructure/worker"
	httpapi "github.com/garyjia/invoice-notifier/internal/interfaces/http"
)

// healthPingTimeout bounds the database ping in Health
const healthPingTimeout = 2 * time.Second

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB       *sql.DB
	db          *sqlite.DB
	invoiceRepo port.InvoiceRepository

	// Infrastructure - Storage
	storage *StorageBundle

	// Application
	delivery       *DeliveryBundle
	invoiceService service.InvoiceService

	// Workers
	workers *WorkerBundle

	// Interfaces
	server *httpapi.Server

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repository
// 2. Storage
// 3. Delivery core
// 4. Application services
// 5. Workers
// 6. HTTP server (constructed, not listening)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized")

	if err := c.initDelivery(); err != nil {
		return fmt.Errorf("failed to initialize delivery: %w", err)
	}
	c.logger.Info("Delivery initialized",
		zap.Bool("enabled", c.delivery.Client.Enabled()))

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.initServer()

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.Manager.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// In-flight hook deliveries finish before the database goes away
	if c.delivery != nil {
		c.delivery.Hook.Wait()
		c.logger.Info("Pending deliveries drained")
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports database reachability, scheduler state and whether delivery
// is configured. Delivery being disabled does not make the service unhealthy.
func (c *Container) Health(ctx context.Context) httpapi.HealthReport {
	report := httpapi.HealthReport{
		Healthy:    true,
		Components: make(map[string]interface{}),
	}

	if c.sqlDB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
		defer cancel()
		if err := c.sqlDB.PingContext(pingCtx); err != nil {
			report.Components["database"] = fmt.Sprintf("ping failed: %v", err)
			report.Healthy = false
		} else {
			report.Components["database"] = "ok"
		}
	} else {
		report.Components["database"] = "not initialized"
		report.Healthy = false
	}

	if c.workers != nil {
		report.Components["retry_scheduler"] = c.workers.Scheduler.Status()
		if !c.workers.Manager.IsRunning() {
			report.Healthy = false
		}
	} else {
		report.Components["retry_scheduler"] = "not initialized"
		report.Healthy = false
	}

	if c.delivery != nil {
		report.Components["delivery_enabled"] = c.delivery.Client.Enabled()
	}

	return report
}

// initDatabase opens the database and creates the invoice repository.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repo, err := ProvideInvoiceRepository(c.sqlDB, c.logger)
	if err != nil {
		c.sqlDB.Close()
		return err
	}
	c.invoiceRepo = repo
	return nil
}

func (c *Container) initStorage() error {
	bundle, err := ProvideStorage(&c.config.Storage, c.config.Scheduler.MaxAttempts, c.logger)
	if err != nil {
		return err
	}
	c.storage = bundle
	return nil
}

func (c *Container) initDelivery() error {
	bundle, err := ProvideDelivery(&DeliveryDeps{
		Webhook:     &c.config.Webhook,
		Repo:        c.invoiceRepo,
		Storage:     c.storage,
		MaxAttempts: c.config.Scheduler.MaxAttempts,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	c.delivery = bundle
	return nil
}

func (c *Container) initServices() error {
	svc, err := ProvideInvoiceService(&ServiceDeps{
		Repo:      c.invoiceRepo,
		TxManager: c.db,
		Storage:   c.storage,
		Hook:      c.delivery.Hook,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.invoiceService = svc
	return nil
}

// initWorkers creates and starts all background workers.
func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Repo:         c.invoiceRepo,
		Delivery:     c.delivery,
		SchedulerCfg: &c.config.Scheduler,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.Manager.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

func (c *Container) initServer() {
	c.server = httpapi.NewServer(
		httpapi.ServerConfig{
			Host:           c.config.Server.Host,
			Port:           c.config.Server.Port,
			ReadTimeout:    c.config.Server.ReadTimeout,
			WriteTimeout:   c.config.Server.WriteTimeout,
			MaxUploadBytes: c.config.Server.MaxUploadBytes,
		},
		c.invoiceService,
		c.Health,
		&zapLoggerAdapter{logger: c.logger},
	)
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// InvoiceRepository returns the invoice repository.
func (c *Container) InvoiceRepository() port.InvoiceRepository {
	return c.invoiceRepo
}

// InvoiceService returns the invoice application service.
func (c *Container) InvoiceService() service.InvoiceService {
	return c.invoiceService
}

// Delivery returns the delivery core.
func (c *Container) Delivery() *DeliveryBundle {
	return c.delivery
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	if c.workers == nil {
		return nil
	}
	return c.workers.Manager
}

// RetryScheduler returns the retry scheduler.
func (c *Container) RetryScheduler() *worker.RetryScheduler {
	if c.workers == nil {
		return nil
	}
	return c.workers.Scheduler
}

// Server returns the HTTP server.
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

var (
	_ service.Logger = (*zapLoggerAdapter)(nil)
	_ httpapi.Logger = (*zapLoggerAdapter)(nil)
)
