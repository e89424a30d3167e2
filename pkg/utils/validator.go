package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	phoneRegex   = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,19}$`)
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

	// MaxInvoiceTotal bounds a single invoice amount
	MaxInvoiceTotal = decimal.NewFromInt(10_000_000)
)

// ValidatePhone validates a recipient phone number
func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(strings.TrimSpace(phone)) {
		return fmt.Errorf("invalid phone format: %s", phone)
	}
	return nil
}

// ValidateAmount validates an invoice total
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("amount must not be negative: %s", amount.String())
	}

	if amount.GreaterThan(MaxInvoiceTotal) {
		return fmt.Errorf("amount exceeds maximum limit: %s", amount.String())
	}

	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("amount has more than two decimal places: %s", amount.String())
	}

	return nil
}

// ValidateDealer validates the dealer name
func ValidateDealer(dealer string) error {
	dealer = strings.TrimSpace(dealer)
	if dealer == "" {
		return fmt.Errorf("dealer is required")
	}
	if len(dealer) > 200 {
		return fmt.Errorf("dealer name too long: %d characters", len(dealer))
	}
	return nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
