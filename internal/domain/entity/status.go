package entity

import "fmt"

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusCreated  InvoiceStatus = "CREATED"
	InvoiceStatusDraft    InvoiceStatus = "DRAFT"
	InvoiceStatusApproved InvoiceStatus = "APPROVED"
)

var validInvoiceStatuses = map[InvoiceStatus]bool{
	InvoiceStatusCreated:  true,
	InvoiceStatusDraft:    true,
	InvoiceStatusApproved: true,
}

// APPROVED -> APPROVED is a re-approval and resets delivery state
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusCreated: {
		InvoiceStatusDraft,
		InvoiceStatusApproved,
	},
	InvoiceStatusDraft: {
		InvoiceStatusDraft,
		InvoiceStatusApproved,
	},
	InvoiceStatusApproved: {
		InvoiceStatusApproved,
	},
}

// String returns the string representation of the status
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known invoice status
func (s InvoiceStatus) IsValid() bool {
	return validInvoiceStatuses[s]
}

// CanTransitionTo reports whether the invoice may move from s to next
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus validates a raw status value
func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	status := InvoiceStatus(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: invoice status %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// DeliveryStatus represents the outcome of the approval notification
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "PENDING"
	DeliveryStatusSent    DeliveryStatus = "SENT"
	DeliveryStatusFailed  DeliveryStatus = "FAILED"
)

var validDeliveryStatuses = map[DeliveryStatus]bool{
	DeliveryStatusPending: true,
	DeliveryStatusSent:    true,
	DeliveryStatusFailed:  true,
}

// SENT is terminal until the invoice is approved again
var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusPending: {
		DeliveryStatusSent,
		DeliveryStatusFailed,
	},
	DeliveryStatusFailed: {
		DeliveryStatusSent,
		DeliveryStatusFailed,
	},
}

// String returns the string representation of the status
func (s DeliveryStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known delivery status
func (s DeliveryStatus) IsValid() bool {
	return validDeliveryStatuses[s]
}

// CanTransitionTo reports whether a delivery outcome may move s to next
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	for _, allowed := range deliveryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DeliveryOutcomeSources lists the delivery states from which an outcome may
// move the invoice to next. Empty when next is not a delivery outcome.
func DeliveryOutcomeSources(next DeliveryStatus) []DeliveryStatus {
	var sources []DeliveryStatus
	for _, from := range []DeliveryStatus{DeliveryStatusPending, DeliveryStatusSent, DeliveryStatusFailed} {
		if from.CanTransitionTo(next) {
			sources = append(sources, from)
		}
	}
	return sources
}

// ParseDeliveryStatus validates a raw delivery status value
func ParseDeliveryStatus(raw string) (DeliveryStatus, error) {
	status := DeliveryStatus(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: delivery status %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// RetryableDeliveryStatuses lists the delivery states the retry sweep selects
func RetryableDeliveryStatuses() []DeliveryStatus {
	return []DeliveryStatus{DeliveryStatusFailed, DeliveryStatusPending}
}
