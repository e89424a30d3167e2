package port

import (
	"context"
	"time"

	"github.com/garyjia/invoice-notifier/internal/domain/entity"
)

// InvoiceFilter narrows invoice listings. Zero values mean "no filter".
type InvoiceFilter struct {
	Status         entity.InvoiceStatus
	DeliveryStatus entity.DeliveryStatus
	Limit          int
	Offset         int
}

// InvoiceRepository defines persistence operations for Invoice
type InvoiceRepository interface {
	// Create inserts a new invoice, assigning an id when none is set
	Create(ctx context.Context, invoice *entity.Invoice) error

	// GetByID retrieves an invoice; returns entity.ErrInvoiceNotFound when absent
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)

	// List returns invoices matching the filter, most recently created first
	List(ctx context.Context, filter InvoiceFilter) ([]*entity.Invoice, error)

	// Update persists the editable header fields and status. Delivery fields are untouched.
	Update(ctx context.Context, invoice *entity.Invoice) error

	// MarkApproved moves the invoice to APPROVED and resets delivery to PENDING/0
	MarkApproved(ctx context.Context, id string, approvedAt time.Time) error

	// FindDeliveryCandidates returns approved invoices whose delivery is PENDING
	// or FAILED with fewer than maxAttempts attempts, capped at limit
	FindDeliveryCandidates(ctx context.Context, limit, maxAttempts int) ([]*entity.Invoice, error)

	// UpdateDeliveryOutcome atomically sets the delivery status, adds
	// attemptsDelta to the attempt counter and returns the new counter.
	// approvedAt identifies the approval the attempt was made for. Returns
	// entity.ErrDeliveryNotApplicable when the invoice is not in a deliverable
	// state or has been approved again since.
	UpdateDeliveryOutcome(ctx context.Context, id string, approvedAt *time.Time, status entity.DeliveryStatus, attemptsDelta int, errorMsg string) (int, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
