package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidatePhone(t *testing.T) {
	valid := []string{"+15550100", "555-0100-22", "+44 20 7946 0958"}
	for _, phone := range valid {
		assert.NoError(t, ValidatePhone(phone), phone)
	}

	invalid := []string{"", "abc", "12", "+1555abc0100"}
	for _, phone := range invalid {
		assert.Error(t, ValidatePhone(phone), phone)
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount  string
		wantErr bool
	}{
		{"0", false},
		{"1250.50", false},
		{"10000000", false},
		{"-1", true},
		{"10000000.01", true},
		{"1.005", true},
		{"1.500", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDealer(t *testing.T) {
	assert.NoError(t, ValidateDealer("Northwind Motors"))
	assert.Error(t, ValidateDealer("   "))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "line onetwo", SanitizeString("line one\x00two\x7f"))
}
