package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-notifier/internal/application/port"
	"github.com/garyjia/invoice-notifier/internal/application/service"
	"github.com/garyjia/invoice-notifier/internal/domain/entity"
)

// RetrySchedulerConfig holds configuration for the retry sweep
type RetrySchedulerConfig struct {
	Interval       time.Duration
	BatchSize      int
	MaxAttempts    int
	AttemptTimeout time.Duration
}

// DefaultRetrySchedulerConfig returns default configuration
func DefaultRetrySchedulerConfig() RetrySchedulerConfig {
	return RetrySchedulerConfig{
		Interval:       60 * time.Second,
		BatchSize:      10,
		MaxAttempts:    entity.MaxDeliveryAttempts,
		AttemptTimeout: 30 * time.Second,
	}
}

// SweepStats summarizes one tick
type SweepStats struct {
	Skipped    bool
	Candidates int
	Sent       int
	Failed     int
}

// SchedulerStatus is a point-in-time view of the scheduler for health checks
type SchedulerStatus struct {
	Running     bool      `json:"running"`
	LastSweepAt time.Time `json:"last_sweep_at"`
	TotalSent   int       `json:"total_sent"`
	TotalFailed int       `json:"total_failed"`
	LastError   string    `json:"last_error,omitempty"`
}

// RetryScheduler periodically redelivers approval notifications that are
// still PENDING or FAILED. Each tick is independent; nothing about the
// schedule is persisted, so a restart simply resumes polling.
type RetryScheduler struct {
	config RetrySchedulerConfig

	repo      port.InvoiceRepository
	deliverer service.Deliverer
	recorder  service.OutcomeRecorder
	logger    *zap.Logger

	// Runtime state
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	isRunning   bool
	lastSweepAt time.Time
	totalSent   int
	totalFailed int
	lastError   error
}

// NewRetryScheduler creates a new retry scheduler
func NewRetryScheduler(
	config RetrySchedulerConfig,
	repo port.InvoiceRepository,
	deliverer service.Deliverer,
	recorder service.OutcomeRecorder,
	logger *zap.Logger,
) *RetryScheduler {
	defaults := DefaultRetrySchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = defaults.AttemptTimeout
	}

	return &RetryScheduler{
		config:    config,
		repo:      repo,
		deliverer: deliverer,
		recorder:  recorder,
		logger:    logger,
	}
}

// Start begins the sweep loop. The first sweep runs one interval after start.
func (s *RetryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("retry scheduler already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.isRunning = true
	s.mu.Unlock()

	s.logger.Info("RetryScheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("max_attempts", s.config.MaxAttempts),
		zap.Bool("delivery_enabled", s.deliverer.Enabled()))

	go s.pollLoop(s.ctx, s.done)

	return nil
}

// Stop cancels the loop and waits for the current tick to return
func (s *RetryScheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}

	s.isRunning = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	status := s.Status()
	s.logger.Info("RetryScheduler stopped",
		zap.Int("total_sent", status.TotalSent),
		zap.Int("total_failed", status.TotalFailed))

	return nil
}

// Name returns the worker name for identification
func (s *RetryScheduler) Name() string {
	return "RetryScheduler"
}

// Status returns a snapshot of the runtime state
func (s *RetryScheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		Running:     s.isRunning,
		LastSweepAt: s.lastSweepAt,
		TotalSent:   s.totalSent,
		TotalFailed: s.totalFailed,
	}
	if s.lastError != nil {
		status.LastError = s.lastError.Error()
	}
	return status
}

func (s *RetryScheduler) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Retry loop context cancelled")
			return

		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one tick: it selects up to BatchSize eligible invoices and
// delivers them one at a time. Failures are logged and never stop the loop.
func (s *RetryScheduler) Sweep(ctx context.Context) (stats SweepStats) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during retry sweep: %v", r)
			s.logger.Error("Retry sweep panicked", zap.Error(err))
			s.recordSweep(SweepStats{}, err)
		}
	}()

	if !s.deliverer.Enabled() {
		s.logger.Debug("Webhook destination not configured, retry sweep skipped")
		return SweepStats{Skipped: true}
	}

	candidates, err := s.repo.FindDeliveryCandidates(ctx, s.config.BatchSize, s.config.MaxAttempts)
	if err != nil {
		s.logger.Error("Failed to query delivery candidates", zap.Error(err))
		s.recordSweep(stats, err)
		return stats
	}

	stats.Candidates = len(candidates)
	if len(candidates) == 0 {
		s.recordSweep(stats, nil)
		return stats
	}

	s.logger.Debug("Processing delivery candidates", zap.Int("count", len(candidates)))

	for i, invoice := range candidates {
		if ctx.Err() != nil {
			s.logger.Info("Retry sweep interrupted", zap.Int("remaining", len(candidates)-i))
			break
		}
		if !invoice.IsDeliveryEligible(s.config.MaxAttempts) {
			s.logger.Warn("Skipping ineligible delivery candidate",
				zap.String("invoice_id", invoice.ID),
				zap.String("status", invoice.Status.String()),
				zap.String("delivery_status", invoice.DeliveryStatus.String()),
				zap.Int("attempts", invoice.DeliveryAttempts))
			continue
		}

		if s.deliverOne(ctx, invoice) {
			stats.Sent++
		} else {
			stats.Failed++
		}
	}

	s.logger.Info("Retry sweep completed",
		zap.Int("candidates", stats.Candidates),
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed))

	s.recordSweep(stats, nil)
	return stats
}

func (s *RetryScheduler) deliverOne(ctx context.Context, invoice *entity.Invoice) bool {
	attemptCtx, cancel := context.WithTimeout(ctx, s.config.AttemptTimeout)
	defer cancel()

	result := s.deliverer.Deliver(attemptCtx, invoice)
	s.recorder.RecordOutcome(ctx, invoice, result)

	if !result.OK {
		s.logger.Warn("Redelivery failed",
			zap.String("invoice_id", invoice.ID),
			zap.Int("previous_attempts", invoice.DeliveryAttempts),
			zap.String("error", result.Error))
	}
	return result.OK
}

func (s *RetryScheduler) recordSweep(stats SweepStats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSweepAt = time.Now()
	s.totalSent += stats.Sent
	s.totalFailed += stats.Failed
	s.lastError = err
}

var _ Worker = (*RetryScheduler)(nil)
