package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-notifier/internal/application/port"
	"github.com/garyjia/invoice-notifier/internal/domain/entity"
)

type mockCandidateRepo struct {
	port.InvoiceRepository

	calls    atomic.Int32
	findFunc func(ctx context.Context, limit, maxAttempts int) ([]*entity.Invoice, error)
}

func (m *mockCandidateRepo) FindDeliveryCandidates(ctx context.Context, limit, maxAttempts int) ([]*entity.Invoice, error) {
	m.calls.Add(1)
	if m.findFunc != nil {
		return m.findFunc(ctx, limit, maxAttempts)
	}
	return nil, nil
}

type mockDeliverer struct {
	enabled     bool
	deliverFunc func(ctx context.Context, invoice *entity.Invoice) entity.DeliveryResult

	mu        sync.Mutex
	delivered []string
}

func (m *mockDeliverer) Enabled() bool { return m.enabled }

func (m *mockDeliverer) Deliver(ctx context.Context, invoice *entity.Invoice) entity.DeliveryResult {
	m.mu.Lock()
	m.delivered = append(m.delivered, invoice.ID)
	m.mu.Unlock()
	if m.deliverFunc != nil {
		return m.deliverFunc(ctx, invoice)
	}
	return entity.DeliverySucceeded()
}

type mockRecorder struct {
	mu      sync.Mutex
	results map[string]entity.DeliveryResult
}

func (m *mockRecorder) RecordOutcome(ctx context.Context, invoice *entity.Invoice, result entity.DeliveryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		m.results = make(map[string]entity.DeliveryResult)
	}
	m.results[invoice.ID] = result
}

func candidate(id string, status entity.DeliveryStatus, attempts int) *entity.Invoice {
	return &entity.Invoice{
		ID:               id,
		Status:           entity.InvoiceStatusApproved,
		DeliveryStatus:   status,
		DeliveryAttempts: attempts,
	}
}

func TestRetryScheduler_Defaults(t *testing.T) {
	s := NewRetryScheduler(RetrySchedulerConfig{}, &mockCandidateRepo{}, &mockDeliverer{}, &mockRecorder{}, zap.NewNop())

	assert.Equal(t, 60*time.Second, s.config.Interval)
	assert.Equal(t, 10, s.config.BatchSize)
	assert.Equal(t, entity.MaxDeliveryAttempts, s.config.MaxAttempts)
	assert.Equal(t, "RetryScheduler", s.Name())
}

func TestRetryScheduler_SweepSkipsWhenNotConfigured(t *testing.T) {
	repo := &mockCandidateRepo{}
	deliverer := &mockDeliverer{enabled: false}
	s := NewRetryScheduler(DefaultRetrySchedulerConfig(), repo, deliverer, &mockRecorder{}, zap.NewNop())

	stats := s.Sweep(context.Background())

	assert.True(t, stats.Skipped)
	assert.Zero(t, repo.calls.Load())
	assert.Empty(t, deliverer.delivered)
}

func TestRetryScheduler_SweepDeliversSequentially(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	repo := &mockCandidateRepo{
		findFunc: func(ctx context.Context, limit, maxAttempts int) ([]*entity.Invoice, error) {
			assert.Equal(t, 10, limit)
			assert.Equal(t, entity.MaxDeliveryAttempts, maxAttempts)
			return []*entity.Invoice{
				candidate("a", entity.DeliveryStatusFailed, 3),
				candidate("b", entity.DeliveryStatusPending, 0),
				candidate("c", entity.DeliveryStatusFailed, 9),
			}, nil
		},
	}
	deliverer := &mockDeliverer{
		enabled: true,
		deliverFunc: func(ctx context.Context, invoice *entity.Invoice) entity.DeliveryResult {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			if n > maxInFlight.Load() {
				maxInFlight.Store(n)
			}
			if invoice.ID == "b" {
				return entity.DeliveryFailed("connection refused")
			}
			return entity.DeliverySucceeded()
		},
	}
	recorder := &mockRecorder{}
	s := NewRetryScheduler(DefaultRetrySchedulerConfig(), repo, deliverer, recorder, zap.NewNop())

	stats := s.Sweep(context.Background())

	assert.Equal(t, SweepStats{Candidates: 3, Sent: 2, Failed: 1}, stats)
	assert.Equal(t, []string{"a", "b", "c"}, deliverer.delivered)
	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.True(t, recorder.results["a"].OK)
	assert.False(t, recorder.results["b"].OK)

	status := s.Status()
	assert.Equal(t, 2, status.TotalSent)
	assert.Equal(t, 1, status.TotalFailed)
	assert.Empty(t, status.LastError)
}

func TestRetryScheduler_SweepIgnoresIneligibleRows(t *testing.T) {
	notApproved := candidate("draft", entity.DeliveryStatusFailed, 1)
	notApproved.Status = entity.InvoiceStatusDraft

	repo := &mockCandidateRepo{
		findFunc: func(ctx context.Context, limit, maxAttempts int) ([]*entity.Invoice, error) {
			return []*entity.Invoice{
				notApproved,
				candidate("sent", entity.DeliveryStatusSent, 0),
				candidate("exhausted", entity.DeliveryStatusFailed, 10),
				candidate("ok", entity.DeliveryStatusFailed, 1),
			}, nil
		},
	}
	deliverer := &mockDeliverer{enabled: true}
	s := NewRetryScheduler(DefaultRetrySchedulerConfig(), repo, deliverer, &mockRecorder{}, zap.NewNop())

	s.Sweep(context.Background())

	assert.Equal(t, []string{"ok"}, deliverer.delivered)
}

func TestRetryScheduler_BadTickDoesNotStopLaterTicks(t *testing.T) {
	var tick atomic.Int32
	repo := &mockCandidateRepo{
		findFunc: func(ctx context.Context, limit, maxAttempts int) ([]*entity.Invoice, error) {
			switch tick.Add(1) {
			case 1:
				return nil, errors.New("database is locked")
			case 2:
				panic("driver bug")
			default:
				return []*entity.Invoice{candidate("a", entity.DeliveryStatusFailed, 1)}, nil
			}
		},
	}
	deliverer := &mockDeliverer{enabled: true}
	s := NewRetryScheduler(DefaultRetrySchedulerConfig(), repo, deliverer, &mockRecorder{}, zap.NewNop())

	s.Sweep(context.Background())
	assert.Contains(t, s.Status().LastError, "database is locked")

	assert.NotPanics(t, func() { s.Sweep(context.Background()) })
	assert.Contains(t, s.Status().LastError, "driver bug")

	stats := s.Sweep(context.Background())
	assert.Equal(t, 1, stats.Sent)
	assert.Empty(t, s.Status().LastError)
}

func TestRetryScheduler_StopsMidBatchOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := &mockCandidateRepo{
		findFunc: func(ctx context.Context, limit, maxAttempts int) ([]*entity.Invoice, error) {
			return []*entity.Invoice{
				candidate("a", entity.DeliveryStatusPending, 0),
				candidate("b", entity.DeliveryStatusPending, 0),
			}, nil
		},
	}
	deliverer := &mockDeliverer{
		enabled: true,
		deliverFunc: func(ctx context.Context, invoice *entity.Invoice) entity.DeliveryResult {
			cancel()
			return entity.DeliverySucceeded()
		},
	}
	s := NewRetryScheduler(DefaultRetrySchedulerConfig(), repo, deliverer, &mockRecorder{}, zap.NewNop())

	s.Sweep(ctx)

	assert.Equal(t, []string{"a"}, deliverer.delivered)
}

func TestRetryScheduler_StartStop(t *testing.T) {
	repo := &mockCandidateRepo{}
	config := DefaultRetrySchedulerConfig()
	config.Interval = 10 * time.Millisecond
	s := NewRetryScheduler(config, repo, &mockDeliverer{enabled: true}, &mockRecorder{}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	assert.True(t, s.Status().Running)

	require.Eventually(t, func() bool { return repo.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.Status().Running)
	calls := repo.calls.Load()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, repo.calls.Load())

	// stopping twice is harmless
	assert.NoError(t, s.Stop())
}

func TestRetryScheduler_FirstTickWaitsOneInterval(t *testing.T) {
	repo := &mockCandidateRepo{}
	config := DefaultRetrySchedulerConfig()
	config.Interval = time.Hour
	s := NewRetryScheduler(config, repo, &mockDeliverer{enabled: true}, &mockRecorder{}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, repo.calls.Load())
}
