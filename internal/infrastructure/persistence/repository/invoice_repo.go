package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-notifier/internal/application/port"
	"github.com/garyjia/invoice-notifier/internal/domain/entity"
	"github.com/garyjia/invoice-notifier/internal/infrastructure/persistence/sqlite"
)

const invoiceColumns = `
	id, status, dealer, phone, total, currency, notes, payload_ref,
	delivery_status, delivery_attempts, last_delivery_error, last_delivery_at,
	approved_at, created_at, updated_at`

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new invoice record
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	if invoice.Status == "" {
		invoice.Status = entity.InvoiceStatusCreated
	}
	if !invoice.Status.IsValid() {
		return fmt.Errorf("%w: invoice status %q", entity.ErrInvalidStatus, invoice.Status)
	}

	now := time.Now().UTC()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = now

	query := `
		INSERT INTO invoices (
			id, status, dealer, phone, total, currency, notes, payload_ref,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.executor(ctx).ExecContext(ctx, query,
		invoice.ID,
		invoice.Status.String(),
		invoice.Dealer,
		invoice.Phone,
		invoice.Total.String(),
		invoice.Currency,
		invoice.Notes,
		nullString(invoice.PayloadRef),
		invoice.CreatedAt.UTC(),
		invoice.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice",
			zap.String("invoice_id", invoice.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	return nil
}

// GetByID retrieves an invoice by ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	invoice, err := scanInvoice(r.executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", entity.ErrInvoiceNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get invoice",
			zap.String("invoice_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	return invoice, nil
}

// List returns invoices matching the filter, most recently created first
func (r *InvoiceRepository) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status.String())
	}
	if filter.DeliveryStatus != "" {
		conditions = append(conditions, "delivery_status = ?")
		args = append(args, filter.DeliveryStatus.String())
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	invoices, err := r.query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// Update persists header fields and status
func (r *InvoiceRepository) Update(ctx context.Context, invoice *entity.Invoice) error {
	if !invoice.Status.IsValid() {
		return fmt.Errorf("%w: invoice status %q", entity.ErrInvalidStatus, invoice.Status)
	}

	query := `
		UPDATE invoices
		SET status = ?, dealer = ?, phone = ?, total = ?, currency = ?,
			notes = ?, payload_ref = ?, updated_at = ?
		WHERE id = ?
	`

	invoice.UpdatedAt = time.Now().UTC()
	result, err := r.executor(ctx).ExecContext(ctx, query,
		invoice.Status.String(),
		invoice.Dealer,
		invoice.Phone,
		invoice.Total.String(),
		invoice.Currency,
		invoice.Notes,
		nullString(invoice.PayloadRef),
		invoice.UpdatedAt,
		invoice.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice",
			zap.String("invoice_id", invoice.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	return requireAffected(result, invoice.ID)
}

// MarkApproved moves the invoice to APPROVED and resets its delivery state
func (r *InvoiceRepository) MarkApproved(ctx context.Context, id string, approvedAt time.Time) error {
	query := `
		UPDATE invoices
		SET status = ?, delivery_status = ?, delivery_attempts = 0,
			last_delivery_error = NULL, approved_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.executor(ctx).ExecContext(ctx, query,
		entity.InvoiceStatusApproved.String(),
		entity.DeliveryStatusPending.String(),
		approvedAt.UTC(),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		r.logger.Error("Failed to mark invoice approved",
			zap.String("invoice_id", id),
			zap.Error(err))
		return fmt.Errorf("failed to mark invoice approved: %w", err)
	}

	return requireAffected(result, id)
}

// FindDeliveryCandidates returns approved invoices awaiting (re)delivery
func (r *InvoiceRepository) FindDeliveryCandidates(ctx context.Context, limit, maxAttempts int) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status = ?
			AND delivery_status IN (?, ?)
			AND (delivery_attempts IS NULL OR delivery_attempts < ?)
		ORDER BY created_at DESC, id ASC
		LIMIT ?`

	retryable := entity.RetryableDeliveryStatuses()
	invoices, err := r.query(ctx, query,
		entity.InvoiceStatusApproved.String(),
		retryable[0].String(),
		retryable[1].String(),
		maxAttempts,
		limit,
	)
	if err != nil {
		r.logger.Error("Failed to find delivery candidates", zap.Error(err))
		return nil, fmt.Errorf("failed to find delivery candidates: %w", err)
	}
	return invoices, nil
}

// UpdateDeliveryOutcome applies a delivery outcome in a single conditional
// statement. The row must still belong to the approval identified by
// approvedAt and be in a state the outcome may leave; SENT is never overwritten.
func (r *InvoiceRepository) UpdateDeliveryOutcome(
	ctx context.Context,
	id string,
	approvedAt *time.Time,
	status entity.DeliveryStatus,
	attemptsDelta int,
	errorMsg string,
) (int, error) {
	sources := entity.DeliveryOutcomeSources(status)
	if len(sources) == 0 {
		return 0, fmt.Errorf("%w: delivery outcome %q", entity.ErrInvalidStatus, status)
	}
	if attemptsDelta < 0 {
		return 0, fmt.Errorf("attempts delta must not be negative: %d", attemptsDelta)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(sources)), ", ")
	query := `
		UPDATE invoices
		SET delivery_status = ?,
			delivery_attempts = COALESCE(delivery_attempts, 0) + ?,
			last_delivery_error = ?,
			last_delivery_at = ?,
			updated_at = ?
		WHERE id = ?
			AND status = ?
			AND approved_at IS ?
			AND delivery_status IN (` + placeholders + `)
		RETURNING delivery_attempts
	`

	var approval interface{}
	if approvedAt != nil {
		approval = approvedAt.UTC()
	}

	now := time.Now().UTC()
	args := []interface{}{
		status.String(),
		attemptsDelta,
		nullString(errorMsg),
		now,
		now,
		id,
		entity.InvoiceStatusApproved.String(),
		approval,
	}
	for _, source := range sources {
		args = append(args, source.String())
	}

	var attempts int
	err := r.executor(ctx).QueryRowContext(ctx, query, args...).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", entity.ErrDeliveryNotApplicable, id)
	}
	if err != nil {
		r.logger.Error("Failed to update delivery outcome",
			zap.String("invoice_id", id),
			zap.String("delivery_status", status.String()),
			zap.Error(err))
		return 0, fmt.Errorf("failed to update delivery outcome: %w", err)
	}

	return attempts, nil
}

func (r *InvoiceRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Invoice, error) {
	rows, err := r.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]*entity.Invoice, 0)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func (r *InvoiceRepository) executor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanInvoice reads one row and validates the status enums at the boundary
func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		invoice           entity.Invoice
		status            string
		total             string
		payloadRef        sql.NullString
		deliveryStatus    sql.NullString
		deliveryAttempts  sql.NullInt64
		lastDeliveryError sql.NullString
		lastDeliveryAt    sql.NullTime
		approvedAt        sql.NullTime
	)

	err := row.Scan(
		&invoice.ID,
		&status,
		&invoice.Dealer,
		&invoice.Phone,
		&total,
		&invoice.Currency,
		&invoice.Notes,
		&payloadRef,
		&deliveryStatus,
		&deliveryAttempts,
		&lastDeliveryError,
		&lastDeliveryAt,
		&approvedAt,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if invoice.Status, err = entity.ParseInvoiceStatus(status); err != nil {
		return nil, err
	}
	if deliveryStatus.Valid {
		if invoice.DeliveryStatus, err = entity.ParseDeliveryStatus(deliveryStatus.String); err != nil {
			return nil, err
		}
	}
	if invoice.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("invalid stored total %q: %w", total, err)
	}

	invoice.PayloadRef = payloadRef.String
	invoice.DeliveryAttempts = int(deliveryAttempts.Int64)
	invoice.LastDeliveryError = lastDeliveryError.String
	if lastDeliveryAt.Valid {
		t := lastDeliveryAt.Time
		invoice.LastDeliveryAt = &t
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		invoice.ApprovedAt = &t
	}

	return &invoice, nil
}

func requireAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", entity.ErrInvoiceNotFound, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
