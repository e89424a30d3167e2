package port

import (
	"context"
	"errors"
)

var (
	// ErrDestinationNotConfigured is returned when no webhook URL is configured
	ErrDestinationNotConfigured = errors.New("webhook destination not configured")

	// ErrTransport wraps network failures, timeouts and non-2xx responses
	ErrTransport = errors.New("webhook transport failure")
)

// WebhookRequest is a single outbound notification
type WebhookRequest struct {
	Body           []byte
	DeliveryID     string
	IdempotencyKey string
}

// WebhookSender posts notifications to the configured destination
type WebhookSender interface {
	// Configured reports whether a destination URL is set
	Configured() bool

	// Send posts the request; any failure wraps ErrTransport or
	// ErrDestinationNotConfigured
	Send(ctx context.Context, req WebhookRequest) error
}
