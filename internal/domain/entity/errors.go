package entity

import "errors"

var (
	// ErrInvoiceNotFound is returned when no invoice matches the given id
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvalidStatus is returned when a stored or requested status is unknown
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTransition is returned when an invoice cannot move to the requested status
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidInvoice is returned when invoice fields fail validation
	ErrInvalidInvoice = errors.New("invalid invoice")

	// ErrInvalidDocument is returned when an uploaded document is not a readable PDF
	ErrInvalidDocument = errors.New("invalid document")

	// ErrDeliveryNotApplicable is returned when a delivery outcome cannot be
	// applied because the invoice is no longer in a deliverable state
	ErrDeliveryNotApplicable = errors.New("delivery outcome not applicable")
)
