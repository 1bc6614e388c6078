package repo_interfaces

import (
	"context"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
)

type ClaimState string

const (
	ClaimFresh    ClaimState = "FRESH"
	ClaimInFlight ClaimState = "IN_FLIGHT"
	ClaimResolved ClaimState = "RESOLVED"
)

// IdempotencyRepository deduplicates transfer requests by client-supplied key.
type IdempotencyRepository interface {
	// Claim registers the key as in-flight. ClaimFresh means the caller owns
	// the key and must eventually Resolve or Release it. ClaimInFlight means
	// another execution holds it; in-flight claims older than inFlightTTL are
	// treated as abandoned and re-claimed. ClaimResolved returns the recorded
	// outcome. A key already bound to a different fingerprint fails with
	// domain.ErrKeyConflict.
	Claim(ctx context.Context, key, fingerprint string, inFlightTTL time.Duration) (ClaimState, *domain.TransferOutcome, error)

	// Resolve records the terminal outcome for a claimed key.
	Resolve(ctx context.Context, key string, outcome domain.TransferOutcome) error

	// Release drops an unresolved claim so the client may retry. It is a
	// no-op for resolved keys.
	Release(ctx context.Context, key string) error

	// PurgeExpired deletes resolved keys older than the retention window and
	// reports how many were removed.
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}
