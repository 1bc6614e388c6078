package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
	"github.com/google/uuid"
)

type accountRecord struct {
	balance   int64
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// LedgerRepository keeps account records in process memory with the same
// conditional-apply semantics as the postgres implementation.
type LedgerRepository struct {
	mu       sync.Mutex
	accounts map[string]*accountRecord
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{accounts: make(map[string]*accountRecord)}
}

func (r *LedgerRepository) CreateAccount(_ context.Context, account domain.Account) (domain.Account, error) {
	if account.Balance < 0 {
		return domain.Account{}, fmt.Errorf("create account: opening balance cannot be negative")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := account.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := r.accounts[id]; exists {
		return domain.Account{}, fmt.Errorf("create account: account %q already exists", id)
	}

	now := time.Now().UTC()
	r.accounts[id] = &accountRecord{
		balance:   account.Balance,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}

	account.ID = id
	account.Version = 1
	account.CreatedAt = now
	account.UpdatedAt = now

	return account, nil
}

func (r *LedgerRepository) GetBalance(_ context.Context, accountID string) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.accounts[accountID]
	if !ok {
		return 0, 0, domain.ErrAccountNotFound
	}

	return record.balance, record.version, nil
}

func (r *LedgerRepository) ConditionalApply(_ context.Context, accountID string, delta int64, expectedVersion int64) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.accounts[accountID]
	if !ok {
		return 0, 0, domain.ErrAccountNotFound
	}
	if record.version != expectedVersion {
		return 0, 0, domain.ErrVersionConflict
	}
	if record.balance+delta < 0 {
		return 0, 0, domain.ErrInsufficientFunds
	}

	record.balance += delta
	record.version++
	record.updatedAt = time.Now().UTC()

	return record.balance, record.version, nil
}

func (r *LedgerRepository) SumBalances(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sum int64
	for _, record := range r.accounts {
		sum += record.balance
	}

	return sum, nil
}
