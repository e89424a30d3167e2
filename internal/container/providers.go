package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-notifier/internal/application/port"
	"github.com/garyjia/invoice-notifier/internal/application/service"
	"github.com/garyjia/invoice-notifier/internal/infrastructure/external/webhook"
	"github.com/garyjia/invoice-notifier/internal/infrastructure/persistence/repository"
	"github.com/garyjia/invoice-notifier/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoice-notifier/internal/infrastructure/report"
	"github.com/garyjia/invoice-notifier/internal/infrastructure/storage"
	"github.com/garyjia/invoice-notifier/internal/infrastructure/worker"
	"github.com/garyjia/invoice-notifier/migrations"
	"github.com/garyjia/invoice-notifier/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	Artifacts port.ArtifactStore
	Inspector port.DocumentInspector
	Report    port.DeliveryReportWriter
}

// DeliveryBundle holds the delivery core.
type DeliveryBundle struct {
	Sender  *webhook.Client
	Client  *service.DeliveryClient
	Tracker *service.StatusTracker
	Hook    *service.TriggerHook
}

// ProvideDatabase opens the database and applies the embedded migrations.
// Returns DatabaseBundle containing sql.DB and TransactionManager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(migrations.FS()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideInvoiceRepository creates the invoice repository.
func ProvideInvoiceRepository(sqlDB *sql.DB, logger *zap.Logger) (port.InvoiceRepository, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return repository.NewInvoiceRepository(sqlDB, logger), nil
}

// ProvideStorage creates the artifact store, document inspector and report writer.
func ProvideStorage(cfg *StorageConfig, maxAttempts int, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &StorageBundle{
		Artifacts: storage.NewLocalArtifactStore(cfg.ArtifactDir, cfg.PublicBaseURL, logger),
		Inspector: storage.NewPDFInspector(),
		Report:    report.NewExcelDeliveryReport(maxAttempts, logger),
	}, nil
}

// DeliveryDeps holds dependencies required for the delivery core.
type DeliveryDeps struct {
	Webhook     *WebhookConfig
	Repo        port.InvoiceRepository
	Storage     *StorageBundle
	MaxAttempts int
	Logger      *zap.Logger
}

// ProvideDelivery creates the webhook client, Delivery Client, Status Tracker
// and Trigger Hook.
func ProvideDelivery(deps *DeliveryDeps) (*DeliveryBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("delivery dependencies are required")
	}
	if deps.Webhook == nil {
		return nil, fmt.Errorf("webhook config is required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("invoice repository is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage bundle is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	sender := webhook.NewClient(webhook.Config{
		URL:     deps.Webhook.URL,
		Timeout: deps.Webhook.Timeout,
		Secret:  deps.Webhook.Secret,
	}, deps.Logger)

	client := service.NewDeliveryClient(sender, deps.Storage.Artifacts, deps.Storage.Inspector, serviceLogger)
	tracker := service.NewStatusTracker(deps.Repo, deps.MaxAttempts, serviceLogger)

	return &DeliveryBundle{
		Sender:  sender,
		Client:  client,
		Tracker: tracker,
		Hook:    service.NewTriggerHook(client, tracker, serviceLogger),
	}, nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repo      port.InvoiceRepository
	TxManager port.TransactionManager
	Storage   *StorageBundle
	Hook      service.ApprovalHook
	Logger    *zap.Logger
}

// ProvideInvoiceService creates the invoice application service.
func ProvideInvoiceService(deps *ServiceDeps) (service.InvoiceService, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("invoice repository is required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage bundle is required")
	}
	if deps.Hook == nil {
		return nil, fmt.Errorf("approval hook is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return service.NewInvoiceService(
		deps.Repo,
		deps.TxManager,
		deps.Storage.Artifacts,
		deps.Storage.Inspector,
		deps.Storage.Report,
		deps.Hook,
		&zapLoggerAdapter{logger: deps.Logger},
	), nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Repo         port.InvoiceRepository
	Delivery     *DeliveryBundle
	SchedulerCfg *SchedulerConfig
	Logger       *zap.Logger
}

// WorkerBundle holds the registered workers.
type WorkerBundle struct {
	Manager   *worker.WorkerManager
	Scheduler *worker.RetryScheduler
}

// ProvideWorkers creates and registers all background workers.
// Workers are registered but not started.
func ProvideWorkers(deps *WorkerDeps) (*WorkerBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("invoice repository is required")
	}
	if deps.Delivery == nil {
		return nil, fmt.Errorf("delivery bundle is required")
	}
	if deps.SchedulerCfg == nil {
		return nil, fmt.Errorf("scheduler config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)

	scheduler := worker.NewRetryScheduler(
		worker.RetrySchedulerConfig{
			Interval:    deps.SchedulerCfg.Interval,
			BatchSize:   deps.SchedulerCfg.BatchSize,
			MaxAttempts: deps.SchedulerCfg.MaxAttempts,
		},
		deps.Repo,
		deps.Delivery.Client,
		deps.Delivery.Tracker,
		deps.Logger,
	)
	manager.Register(scheduler)

	return &WorkerBundle{
		Manager:   manager,
		Scheduler: scheduler,
	}, nil
}
