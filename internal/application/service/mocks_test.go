package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/garyjia/invoice-notifier/internal/application/port"
	"github.com/garyjia/invoice-notifier/internal/domain/entity"
)

// Mock repositories
type mockInvoiceRepo struct {
	createFunc                 func(ctx context.Context, invoice *entity.Invoice) error
	getByIDFunc                func(ctx context.Context, id string) (*entity.Invoice, error)
	listFunc                   func(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error)
	updateFunc                 func(ctx context.Context, invoice *entity.Invoice) error
	markApprovedFunc           func(ctx context.Context, id string, approvedAt time.Time) error
	findDeliveryCandidatesFunc func(ctx context.Context, limit, maxAttempts int) ([]*entity.Invoice, error)
	updateDeliveryOutcomeFunc  func(ctx context.Context, id string, approvedAt *time.Time, status entity.DeliveryStatus, attemptsDelta int, errorMsg string) (int, error)
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, invoice)
	}
	invoice.ID = "inv-1"
	return nil
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.Invoice{ID: id, Status: entity.InvoiceStatusCreated}, nil
}

func (m *mockInvoiceRepo) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return []*entity.Invoice{}, nil
}

func (m *mockInvoiceRepo) Update(ctx context.Context, invoice *entity.Invoice) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, invoice)
	}
	return nil
}

func (m *mockInvoiceRepo) MarkApproved(ctx context.Context, id string, approvedAt time.Time) error {
	if m.markApprovedFunc != nil {
		return m.markApprovedFunc(ctx, id, approvedAt)
	}
	return nil
}

func (m *mockInvoiceRepo) FindDeliveryCandidates(ctx context.Context, limit, maxAttempts int) ([]*entity.Invoice, error) {
	if m.findDeliveryCandidatesFunc != nil {
		return m.findDeliveryCandidatesFunc(ctx, limit, maxAttempts)
	}
	return []*entity.Invoice{}, nil
}

func (m *mockInvoiceRepo) UpdateDeliveryOutcome(ctx context.Context, id string, approvedAt *time.Time, status entity.DeliveryStatus, attemptsDelta int, errorMsg string) (int, error) {
	if m.updateDeliveryOutcomeFunc != nil {
		return m.updateDeliveryOutcomeFunc(ctx, id, approvedAt, status, attemptsDelta, errorMsg)
	}
	return 0, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockSender struct {
	configured bool
	sendFunc   func(ctx context.Context, req port.WebhookRequest) error

	mu    sync.Mutex
	calls []port.WebhookRequest
}

func (m *mockSender) Configured() bool { return m.configured }

func (m *mockSender) Send(ctx context.Context, req port.WebhookRequest) error {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.sendFunc != nil {
		return m.sendFunc(ctx, req)
	}
	return nil
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockArtifactStore struct {
	saveFunc    func(ctx context.Context, ref string, content []byte) error
	resolveFunc func(ctx context.Context, ref string) ([]byte, error)
}

func (m *mockArtifactStore) Save(ctx context.Context, ref string, content []byte) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, ref, content)
	}
	return nil
}

func (m *mockArtifactStore) Resolve(ctx context.Context, ref string) ([]byte, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, ref)
	}
	return nil, port.ErrArtifactNotFound
}

func (m *mockArtifactStore) URL(ref string) string {
	return "https://files.example.com/" + ref
}

type mockInspector struct {
	pageCountFunc func(content []byte) (int, error)
}

func (m *mockInspector) PageCount(content []byte) (int, error) {
	if m.pageCountFunc != nil {
		return m.pageCountFunc(content)
	}
	return 1, nil
}

type mockReportWriter struct {
	writeFunc func(w io.Writer, invoices []*entity.Invoice) error
}

func (m *mockReportWriter) Write(w io.Writer, invoices []*entity.Invoice) error {
	if m.writeFunc != nil {
		return m.writeFunc(w, invoices)
	}
	return nil
}

type mockHook struct {
	mu       sync.Mutex
	approved []*entity.Invoice
}

func (m *mockHook) OnApproved(invoice *entity.Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approved = append(m.approved, invoice)
}

type mockDeliverer struct {
	enabled     bool
	deliverFunc func(ctx context.Context, invoice *entity.Invoice) entity.DeliveryResult
}

func (m *mockDeliverer) Enabled() bool { return m.enabled }

func (m *mockDeliverer) Deliver(ctx context.Context, invoice *entity.Invoice) entity.DeliveryResult {
	if m.deliverFunc != nil {
		return m.deliverFunc(ctx, invoice)
	}
	return entity.DeliverySucceeded()
}

type recordedOutcome struct {
	invoiceID  string
	approvedAt *time.Time
	result     entity.DeliveryResult
}

type mockRecorder struct {
	mu       sync.Mutex
	outcomes []recordedOutcome
}

func (m *mockRecorder) RecordOutcome(ctx context.Context, invoice *entity.Invoice, result entity.DeliveryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, recordedOutcome{invoiceID: invoice.ID, approvedAt: invoice.ApprovedAt, result: result})
}

type logEntry struct {
	level string
	msg   string
}

type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  { m.record("info", msg) }
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  { m.record("warn", msg) }
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) { m.record("error", msg) }

func (m *mockLogger) record(level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, logEntry{level: level, msg: msg})
}

func (m *mockLogger) count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.level == level {
			n++
		}
	}
	return n
}
