package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/invoice-notifier/internal/application/port"
	"github.com/garyjia/invoice-notifier/internal/domain/entity"
)

// Deliverer performs a single webhook delivery for an invoice
type Deliverer interface {
	// Enabled reports whether a destination is configured
	Enabled() bool

	// Deliver never returns an error; every failure is folded into the result
	Deliver(ctx context.Context, invoice *entity.Invoice) entity.DeliveryResult
}

// DeliveryClient builds the approval notification and posts it
type DeliveryClient struct {
	sender    port.WebhookSender
	artifacts port.ArtifactStore
	inspector port.DocumentInspector
	logger    Logger
	now       func() time.Time
}

// NewDeliveryClient creates a new DeliveryClient. inspector may be nil.
func NewDeliveryClient(
	sender port.WebhookSender,
	artifacts port.ArtifactStore,
	inspector port.DocumentInspector,
	logger Logger,
) *DeliveryClient {
	return &DeliveryClient{
		sender:    sender,
		artifacts: artifacts,
		inspector: inspector,
		logger:    logger,
		now:       time.Now,
	}
}

// Enabled reports whether a destination is configured
func (c *DeliveryClient) Enabled() bool {
	return c.sender != nil && c.sender.Configured()
}

// Deliver sends the invoice_approved notification for invoice
func (c *DeliveryClient) Deliver(ctx context.Context, invoice *entity.Invoice) (result entity.DeliveryResult) {
	if invoice == nil {
		c.logger.Error("Webhook delivery requested without an invoice")
		return entity.DeliveryFailed("no invoice to deliver")
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic during webhook delivery", "invoice_id", invoice.ID, "panic", r)
			result = entity.DeliveryFailed(fmt.Sprintf("panic during delivery: %v", r))
		}
	}()

	if !c.Enabled() {
		c.logger.Info("Webhook destination not configured, delivery skipped", "invoice_id", invoice.ID)
		return entity.DeliveryNotConfigured()
	}

	notification := c.buildNotification(ctx, invoice)
	body, err := json.Marshal(notification)
	if err != nil {
		c.logger.Error("Failed to serialize notification", "invoice_id", invoice.ID, "error", err)
		return entity.DeliveryFailed(fmt.Sprintf("serialize notification: %v", err))
	}

	req := port.WebhookRequest{
		Body:           body,
		DeliveryID:     uuid.NewString(),
		IdempotencyKey: invoice.IdempotencyKey(),
	}

	if err := c.sender.Send(ctx, req); err != nil {
		if errors.Is(err, port.ErrDestinationNotConfigured) {
			c.logger.Info("Webhook destination not configured, delivery skipped", "invoice_id", invoice.ID)
			return entity.DeliveryNotConfigured()
		}
		c.logger.Error("Webhook delivery failed",
			"invoice_id", invoice.ID,
			"delivery_id", req.DeliveryID,
			"error", err,
		)
		return entity.DeliveryFailed(err.Error())
	}

	c.logger.Info("Webhook delivered",
		"invoice_id", invoice.ID,
		"delivery_id", req.DeliveryID,
		"embedded_document", notification.PDFBase64 != nil,
	)
	return entity.DeliverySucceeded()
}

func (c *DeliveryClient) buildNotification(ctx context.Context, invoice *entity.Invoice) entity.InvoiceNotification {
	notification := entity.InvoiceNotification{
		Event:     entity.EventInvoiceApproved,
		InvoiceID: invoice.ID,
		Phone:     invoice.Phone,
		Total:     json.Number(invoice.Total.String()),
		Dealer:    invoice.Dealer,
		Timestamp: c.now().UTC().Format(time.RFC3339),
	}

	if !invoice.HasArtifact() {
		return notification
	}

	if c.artifacts != nil {
		link := c.artifacts.URL(invoice.PayloadRef)
		notification.PDFURL = &link
	} else {
		ref := invoice.PayloadRef
		notification.PDFURL = &ref
	}

	if encoded, ok := c.embedArtifact(ctx, invoice); ok {
		notification.PDFBase64 = &encoded
	}
	return notification
}

// embedArtifact resolves and encodes the document. Failures only log a warning.
func (c *DeliveryClient) embedArtifact(ctx context.Context, invoice *entity.Invoice) (string, bool) {
	if c.artifacts == nil {
		return "", false
	}

	content, err := c.artifacts.Resolve(ctx, invoice.PayloadRef)
	if err != nil {
		c.logger.Warn("Artifact unavailable, sending without document",
			"invoice_id", invoice.ID,
			"payload_ref", invoice.PayloadRef,
			"error", err,
		)
		return "", false
	}

	if c.inspector != nil {
		pages, err := c.inspector.PageCount(content)
		if err != nil || pages < 1 {
			c.logger.Warn("Artifact is not a readable document, sending without it",
				"invoice_id", invoice.ID,
				"payload_ref", invoice.PayloadRef,
				"pages", pages,
				"error", err,
			)
			return "", false
		}
	}

	return base64.StdEncoding.EncodeToString(content), true
}

var _ Deliverer = (*DeliveryClient)(nil)
