package service

import (
	"context"
	"sync"

	"github.com/garyjia/invoice-notifier/internal/domain/entity"
)

// ApprovalHook is notified after an approval has been committed
type ApprovalHook interface {
	OnApproved(invoice *entity.Invoice)
}

// TriggerHook makes one immediate delivery attempt per approval, in the
// background. OnApproved returns without waiting for it.
type TriggerHook struct {
	deliverer Deliverer
	recorder  OutcomeRecorder
	logger    Logger

	wg sync.WaitGroup
}

// NewTriggerHook creates a new TriggerHook
func NewTriggerHook(deliverer Deliverer, recorder OutcomeRecorder, logger Logger) *TriggerHook {
	return &TriggerHook{
		deliverer: deliverer,
		recorder:  recorder,
		logger:    logger,
	}
}

// OnApproved spawns the delivery attempt for a freshly approved invoice
func (h *TriggerHook) OnApproved(invoice *entity.Invoice) {
	if invoice == nil {
		return
	}
	if !h.deliverer.Enabled() {
		h.logger.Info("Webhook destination not configured, approval delivery skipped", "invoice_id", invoice.ID)
		return
	}

	snapshot := *invoice
	if invoice.ApprovedAt != nil {
		approvedAt := *invoice.ApprovedAt
		snapshot.ApprovedAt = &approvedAt
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("Panic in approval delivery", "invoice_id", snapshot.ID, "panic", r)
			}
		}()

		// Detached from the request; the HTTP client timeout bounds the call
		ctx := context.Background()

		result := h.deliverer.Deliver(ctx, &snapshot)
		h.recorder.RecordOutcome(ctx, &snapshot, result)
	}()
}

// Wait blocks until in-flight approval deliveries finish
func (h *TriggerHook) Wait() {
	h.wg.Wait()
}

var _ ApprovalHook = (*TriggerHook)(nil)
