package models

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const maxAccountIDLength = 64

type CreateAccountRequest struct {
	AccountID      string `json:"accountId,omitempty"`
	OpeningBalance string `json:"openingBalance,omitempty"`
}

func (r CreateAccountRequest) Validate() error {
	var errs []string

	if len(strings.TrimSpace(r.AccountID)) > maxAccountIDLength {
		errs = append(errs, "accountId must be at most 64 characters")
	}

	if strings.TrimSpace(r.OpeningBalance) != "" {
		if _, err := ParseNonNegativeMinorUnits(r.OpeningBalance); err != nil {
			errs = append(errs, "openingBalance must be a non-negative decimal with at most two decimal places")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// OpeningBalanceMinorUnits converts the opening balance to minor units; an
// empty balance opens the account at zero. Validate must have passed first.
func (r CreateAccountRequest) OpeningBalanceMinorUnits() int64 {
	if strings.TrimSpace(r.OpeningBalance) == "" {
		return 0
	}

	amount, err := ParseNonNegativeMinorUnits(r.OpeningBalance)
	if err != nil {
		return 0
	}
	return amount
}

type CreateAccountResponse struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"createdAt"`
}

type BalanceResponse struct {
	AccountID         string `json:"accountId"`
	Balance           string `json:"balance"`
	BalanceMinorUnits int64  `json:"balanceMinorUnits"`
}

// ParseNonNegativeMinorUnits is ParseMinorUnits with zero allowed, used for
// opening balances.
func ParseNonNegativeMinorUnits(raw string) (int64, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if value.IsNegative() {
		return 0, errors.New("amount cannot be negative")
	}

	shifted := value.Shift(minorUnitScale)
	if !shifted.IsInteger() {
		return 0, errors.New("amount has more than two decimal places")
	}

	return shifted.IntPart(), nil
}
