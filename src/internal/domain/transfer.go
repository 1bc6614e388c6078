package domain

import (
	"fmt"
	"time"
)

type TransferStatus string

const (
	TransferStatusCommitted    TransferStatus = "COMMITTED"
	TransferStatusRejected     TransferStatus = "REJECTED"
	TransferStatusInconsistent TransferStatus = "INCONSISTENT"
)

// TransferOutcome is the terminal result recorded against an idempotency key.
// Once recorded it is replayed verbatim to retries of the same key.
type TransferOutcome struct {
	Reference            string         `json:"reference"`
	Status               TransferStatus `json:"status"`
	Reason               string         `json:"reason,omitempty"`
	SourceAccountID      string         `json:"sourceAccountId"`
	DestinationAccountID string         `json:"destinationAccountId"`
	AmountMinorUnits     int64          `json:"amountMinorUnits"`
	NewSourceBalance     int64          `json:"newSourceBalance,omitempty"`
	NewDestBalance       int64          `json:"newDestBalance,omitempty"`
	ResolvedAt           time.Time      `json:"resolvedAt,omitempty"`
}

// TransferFingerprint binds an idempotency key to the exact request triple.
// A key reused with a different triple is a client error, not a retry.
func TransferFingerprint(sourceAccountID, destinationAccountID string, amountMinorUnits int64) string {
	return fmt.Sprintf("%s|%s|%d", sourceAccountID, destinationAccountID, amountMinorUnits)
}
