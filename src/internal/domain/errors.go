package domain

import "errors"

var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrSameAccountTransfer = errors.New("source and destination accounts cannot be the same")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrVersionConflict     = errors.New("account version conflict")
	ErrConflict            = errors.New("transfer aborted after exhausting apply attempts")
	ErrBusy                = errors.New("transfer is busy, retry later")
	ErrKeyConflict         = errors.New("idempotency key reused with different parameters")
	ErrInconsistent        = errors.New("ledger inconsistency detected, manual reconciliation required")
)

const (
	ReasonInvalidAmount       = "INVALID_AMOUNT"
	ReasonSameAccountTransfer = "SAME_ACCOUNT_TRANSFER"
	ReasonAccountNotFound     = "ACCOUNT_NOT_FOUND"
	ReasonInsufficientFunds   = "INSUFFICIENT_FUNDS"
	ReasonConflict            = "CONFLICT"
	ReasonInconsistent        = "INCONSISTENT"
)

var reasonsByError = []struct {
	err    error
	reason string
}{
	{ErrInvalidAmount, ReasonInvalidAmount},
	{ErrSameAccountTransfer, ReasonSameAccountTransfer},
	{ErrAccountNotFound, ReasonAccountNotFound},
	{ErrInsufficientFunds, ReasonInsufficientFunds},
	{ErrConflict, ReasonConflict},
	{ErrInconsistent, ReasonInconsistent},
}

// RejectionReason maps a taxonomy error to the stable reason code recorded in
// transfer outcomes. Unknown errors map to an empty reason.
func RejectionReason(err error) string {
	for _, entry := range reasonsByError {
		if errors.Is(err, entry.err) {
			return entry.reason
		}
	}
	return ""
}

// ErrorForReason is the inverse of RejectionReason, used when replaying a
// previously recorded outcome to a retried request.
func ErrorForReason(reason string) error {
	for _, entry := range reasonsByError {
		if entry.reason == reason {
			return entry.err
		}
	}
	return nil
}
