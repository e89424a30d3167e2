package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice represents a dealer invoice together with the delivery state of its
// approval notification
type Invoice struct {
	ID       string          `json:"id"`
	Status   InvoiceStatus   `json:"status"`
	Dealer   string          `json:"dealer"`
	Phone    string          `json:"phone"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
	Notes    string          `json:"notes,omitempty"`

	// PayloadRef points at the generated document in the artifact store.
	// Empty when no document has been attached.
	PayloadRef string `json:"payload_ref,omitempty"`

	// Delivery fields are owned by the delivery core. DeliveryStatus stays
	// empty until the invoice is approved for the first time.
	DeliveryStatus    DeliveryStatus `json:"delivery_status,omitempty"`
	DeliveryAttempts  int            `json:"delivery_attempts"`
	LastDeliveryError string         `json:"last_delivery_error,omitempty"`
	LastDeliveryAt    *time.Time     `json:"last_delivery_at,omitempty"`

	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// HasArtifact reports whether a generated document is attached
func (i *Invoice) HasArtifact() bool {
	return strings.TrimSpace(i.PayloadRef) != ""
}

// IsDeliveryEligible reports whether the retry sweep may pick the invoice up
func (i *Invoice) IsDeliveryEligible(maxAttempts int) bool {
	if i.Status != InvoiceStatusApproved {
		return false
	}
	if i.DeliveryStatus != DeliveryStatusPending && i.DeliveryStatus != DeliveryStatusFailed {
		return false
	}
	return i.DeliveryAttempts < maxAttempts
}

// RetryExhausted reports whether automatic retries have run out
func (i *Invoice) RetryExhausted(maxAttempts int) bool {
	return i.DeliveryStatus == DeliveryStatusFailed && i.DeliveryAttempts >= maxAttempts
}

// IdempotencyKey identifies one approval of the invoice. Every delivery
// attempt made for the same approval carries the same key.
func (i *Invoice) IdempotencyKey() string {
	if i.ApprovedAt == nil {
		return i.ID
	}
	return fmt.Sprintf("%s:%d", i.ID, i.ApprovedAt.Unix())
}
