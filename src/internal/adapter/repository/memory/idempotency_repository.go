package memory

import (
	"context"
	"sync"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
)

type keyRecord struct {
	fingerprint string
	outcome     *domain.TransferOutcome
	claimedAt   time.Time
	resolvedAt  time.Time
}

type IdempotencyRepository struct {
	mu   sync.Mutex
	keys map[string]*keyRecord
}

func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{keys: make(map[string]*keyRecord)}
}

func (r *IdempotencyRepository) Claim(_ context.Context, key, fingerprint string, inFlightTTL time.Duration) (repo_interfaces.ClaimState, *domain.TransferOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	record, ok := r.keys[key]
	if !ok {
		r.keys[key] = &keyRecord{fingerprint: fingerprint, claimedAt: now}
		return repo_interfaces.ClaimFresh, nil, nil
	}

	if record.fingerprint != fingerprint {
		return "", nil, domain.ErrKeyConflict
	}

	if record.outcome != nil {
		outcome := *record.outcome
		return repo_interfaces.ClaimResolved, &outcome, nil
	}

	// Abandoned claim from a crashed execution. A claimant merely stalled
	// past the TTL loses the key here; the TTL must stay well above the
	// worst-case transfer duration.
	if inFlightTTL > 0 && now.Sub(record.claimedAt) > inFlightTTL {
		record.claimedAt = now
		return repo_interfaces.ClaimFresh, nil, nil
	}

	return repo_interfaces.ClaimInFlight, nil, nil
}

func (r *IdempotencyRepository) Resolve(_ context.Context, key string, outcome domain.TransferOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.keys[key]
	if !ok {
		record = &keyRecord{fingerprint: domain.TransferFingerprint(outcome.SourceAccountID, outcome.DestinationAccountID, outcome.AmountMinorUnits), claimedAt: time.Now().UTC()}
		r.keys[key] = record
	}

	stored := outcome
	record.outcome = &stored
	record.resolvedAt = time.Now().UTC()

	return nil
}

func (r *IdempotencyRepository) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.keys[key]
	if ok && record.outcome == nil {
		delete(r.keys, key)
	}

	return nil
}

func (r *IdempotencyRepository) PurgeExpired(_ context.Context, retention time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retention)
	var removed int64
	for key, record := range r.keys {
		if record.outcome != nil && record.resolvedAt.Before(cutoff) {
			delete(r.keys, key)
			removed++
		}
	}

	return removed, nil
}
