package models

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Balances and amounts cross the wire as decimal strings with at most two
// fractional digits; the core works exclusively in minor units.
const minorUnitScale = 2

const maxIdempotencyKeyLength = 128

type TransferRequest struct {
	SourceAccountID      string `json:"sourceAccountId"`
	DestinationAccountID string `json:"destinationAccountId"`
	Amount               string `json:"amount"`
	IdempotencyKey       string `json:"idempotencyKey"`
}

func (r TransferRequest) Validate() error {
	var errs []string

	if strings.TrimSpace(r.SourceAccountID) == "" {
		errs = append(errs, "sourceAccountId is required")
	}
	if strings.TrimSpace(r.DestinationAccountID) == "" {
		errs = append(errs, "destinationAccountId is required")
	}

	if _, err := ParseMinorUnits(r.Amount); err != nil {
		errs = append(errs, "amount must be a positive decimal with at most two decimal places")
	}

	key := strings.TrimSpace(r.IdempotencyKey)
	if key == "" {
		errs = append(errs, "idempotencyKey is required")
	} else if len(key) > maxIdempotencyKeyLength {
		errs = append(errs, "idempotencyKey must be at most 128 characters")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// AmountMinorUnits converts the decimal amount to minor units. Validate must
// have passed first.
func (r TransferRequest) AmountMinorUnits() int64 {
	amount, err := ParseMinorUnits(r.Amount)
	if err != nil {
		return 0
	}
	return amount
}

type TransferResponse struct {
	Reference            string `json:"reference,omitempty"`
	Status               string `json:"status"`
	Reason               string `json:"reason,omitempty"`
	SourceAccountID      string `json:"sourceAccountId"`
	DestinationAccountID string `json:"destinationAccountId"`
	Amount               string `json:"amount"`
	NewSourceBalance     string `json:"newSourceBalance,omitempty"`
	NewDestBalance       string `json:"newDestBalance,omitempty"`
	CurrentSourceBalance string `json:"currentSourceBalance,omitempty"`
	CurrentDestBalance   string `json:"currentDestBalance,omitempty"`
}

// ParseMinorUnits parses a positive decimal string into minor units, rejecting
// values with more than two fractional digits.
func ParseMinorUnits(raw string) (int64, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if value.LessThanOrEqual(decimal.Zero) {
		return 0, errors.New("amount must be greater than zero")
	}

	shifted := value.Shift(minorUnitScale)
	if !shifted.IsInteger() {
		return 0, errors.New("amount has more than two decimal places")
	}

	return shifted.IntPart(), nil
}

// FormatMinorUnits renders minor units back as a two-decimal string.
func FormatMinorUnits(minorUnits int64) string {
	return decimal.New(minorUnits, -minorUnitScale).StringFixed(minorUnitScale)
}
