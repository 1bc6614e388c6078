package repo_interfaces

import (
	"context"

	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
)

// LedgerRepository is the durable keyed store of account balances. All
// mutation goes through ConditionalApply; there is no blind overwrite.
type LedgerRepository interface {
	CreateAccount(ctx context.Context, account domain.Account) (domain.Account, error)

	// GetBalance returns the current balance and version, or
	// domain.ErrAccountNotFound.
	GetBalance(ctx context.Context, accountID string) (balance int64, version int64, err error)

	// ConditionalApply adds delta to the account balance if and only if the
	// stored version equals expectedVersion and the resulting balance is not
	// negative. It returns domain.ErrVersionConflict on a version mismatch,
	// domain.ErrInsufficientFunds when the delta would take the balance below
	// zero, and domain.ErrAccountNotFound when the account does not exist.
	// Failures have no side effects.
	ConditionalApply(ctx context.Context, accountID string, delta int64, expectedVersion int64) (newBalance int64, newVersion int64, err error)

	// SumBalances returns the sum of every balance in the ledger.
	SumBalances(ctx context.Context) (int64, error)
}
