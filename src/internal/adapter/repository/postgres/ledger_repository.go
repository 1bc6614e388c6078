package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
	"github.com/api-sage/ledger-transfer-engine/src/internal/logger"
	"github.com/google/uuid"
)

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) CreateAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	if account.Balance < 0 {
		return domain.Account{}, fmt.Errorf("create account: opening balance cannot be negative")
	}

	id := account.ID
	if id == "" {
		id = uuid.NewString()
	}

	const query = `
INSERT INTO accounts (id, balance, version)
VALUES ($1, $2, 1)
RETURNING created_at, updated_at`

	var createdAt time.Time
	var updatedAt time.Time

	if err := r.db.QueryRowContext(ctx, query, id, account.Balance).Scan(&createdAt, &updatedAt); err != nil {
		logger.Error("ledger repository create account failed", err, logger.Fields{
			"accountId": id,
		})
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	account.ID = id
	account.Version = 1
	account.CreatedAt = createdAt
	account.UpdatedAt = updatedAt

	return account, nil
}

func (r *LedgerRepository) GetBalance(ctx context.Context, accountID string) (int64, int64, error) {
	const query = `SELECT balance, version FROM accounts WHERE id = $1`

	var balance int64
	var version int64

	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&balance, &version); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, domain.ErrAccountNotFound
		}
		logger.Error("ledger repository get balance failed", err, logger.Fields{
			"accountId": accountID,
		})
		return 0, 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, version, nil
}

func (r *LedgerRepository) ConditionalApply(ctx context.Context, accountID string, delta int64, expectedVersion int64) (int64, int64, error) {
	const query = `
UPDATE accounts
SET balance = balance + $2,
    version = version + 1,
    updated_at = NOW()
WHERE id = $1
  AND version = $3
  AND balance + $2 >= 0
RETURNING balance, version`

	var newBalance int64
	var newVersion int64

	err := r.db.QueryRowContext(ctx, query, accountID, delta, expectedVersion).Scan(&newBalance, &newVersion)
	if err == nil {
		return newBalance, newVersion, nil
	}
	if err != sql.ErrNoRows {
		logger.Error("ledger repository conditional apply failed", err, logger.Fields{
			"accountId": accountID,
			"delta":     delta,
		})
		return 0, 0, fmt.Errorf("conditional apply: %w", err)
	}

	// The guarded update matched no row. Re-read to tell the three causes
	// apart: missing account, stale version, or a delta that would take the
	// balance below zero.
	balance, version, readErr := r.GetBalance(ctx, accountID)
	if readErr != nil {
		return 0, 0, readErr
	}
	if version != expectedVersion {
		return 0, 0, domain.ErrVersionConflict
	}
	if balance+delta < 0 {
		return 0, 0, domain.ErrInsufficientFunds
	}

	// Matching version and sufficient balance yet no row updated: the record
	// changed between the update and the re-read. Treat as a version conflict
	// so the caller re-reads and retries.
	return 0, 0, domain.ErrVersionConflict
}

func (r *LedgerRepository) SumBalances(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(SUM(balance), 0) FROM accounts`

	var sum int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum balances: %w", err)
	}

	return sum, nil
}
