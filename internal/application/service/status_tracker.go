package service

import (
	"context"
	"errors"

	"github.com/garyjia/invoice-notifier/internal/application/port"
	"github.com/garyjia/invoice-notifier/internal/domain/entity"
)

// OutcomeRecorder persists the result of a delivery attempt
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, invoice *entity.Invoice, result entity.DeliveryResult)
}

// StatusTracker writes delivery outcomes onto the invoice record.
// It is best-effort: storage failures are logged, never returned.
type StatusTracker struct {
	repo        port.InvoiceRepository
	maxAttempts int
	logger      Logger
}

// NewStatusTracker creates a new StatusTracker
func NewStatusTracker(repo port.InvoiceRepository, maxAttempts int, logger Logger) *StatusTracker {
	if maxAttempts <= 0 {
		maxAttempts = entity.MaxDeliveryAttempts
	}
	return &StatusTracker{
		repo:        repo,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// RecordOutcome sets SENT on success, or FAILED plus one attempt on failure.
// Results produced without a configured destination change nothing. The
// outcome only applies to the approval the invoice snapshot was taken from.
func (t *StatusTracker) RecordOutcome(ctx context.Context, invoice *entity.Invoice, result entity.DeliveryResult) {
	if invoice == nil || result.NotConfigured {
		return
	}
	invoiceID := invoice.ID

	status, delta := entity.DeliveryStatusSent, 0
	if !result.OK {
		status, delta = entity.DeliveryStatusFailed, 1
	}

	attempts, err := t.repo.UpdateDeliveryOutcome(ctx, invoiceID, invoice.ApprovedAt, status, delta, result.Error)
	if errors.Is(err, entity.ErrDeliveryNotApplicable) {
		t.logger.Info("Delivery outcome not applied, invoice no longer awaiting delivery",
			"invoice_id", invoiceID,
			"delivery_status", status.String(),
		)
		return
	}
	if err != nil {
		t.logger.Error("Failed to record delivery outcome",
			"invoice_id", invoiceID,
			"delivery_status", status.String(),
			"error", err,
		)
		return
	}

	if status == entity.DeliveryStatusFailed && attempts >= t.maxAttempts {
		t.logger.Warn("Webhook delivery retries exhausted, manual reset required",
			"invoice_id", invoiceID,
			"attempts", attempts,
			"last_error", result.Error,
		)
	}
}

var _ OutcomeRecorder = (*StatusTracker)(nil)
