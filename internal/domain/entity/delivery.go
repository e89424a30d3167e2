package entity

import "encoding/json"

// MaxDeliveryAttempts is the number of failed deliveries after which the
// retry sweep stops selecting an invoice
const MaxDeliveryAttempts = 10

// EventInvoiceApproved is the event type carried by approval notifications
const EventInvoiceApproved = "invoice_approved"

// DeliveryResult is the outcome of a single webhook delivery attempt
type DeliveryResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	// NotConfigured marks results produced without any network I/O because
	// no destination is configured. Such results never change persisted state.
	NotConfigured bool `json:"not_configured,omitempty"`
}

// DeliverySucceeded builds a successful result
func DeliverySucceeded() DeliveryResult {
	return DeliveryResult{OK: true}
}

// DeliveryFailed builds a failed result carrying the error message
func DeliveryFailed(msg string) DeliveryResult {
	return DeliveryResult{OK: false, Error: msg}
}

// DeliveryNotConfigured builds the result returned when delivery is disabled
func DeliveryNotConfigured() DeliveryResult {
	return DeliveryResult{OK: false, Error: "webhook destination not configured", NotConfigured: true}
}

// InvoiceNotification is the JSON body posted to the webhook destination
type InvoiceNotification struct {
	Event     string      `json:"event"`
	InvoiceID string      `json:"invoice_id"`
	Phone     string      `json:"phone"`
	PDFURL    *string     `json:"pdf_url"`
	PDFBase64 *string     `json:"pdf_base64"`
	Total     json.Number `json:"total"`
	Dealer    string      `json:"dealer"`
	Timestamp string      `json:"timestamp"`
}
