package services

import (
	"context"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
	"github.com/api-sage/ledger-transfer-engine/src/internal/logger"
)

// IdempotencyGuard deduplicates transfer executions by client-supplied key.
// A Fresh claim obligates the caller to either Resolve the key with a terminal
// outcome or Release it so the client can retry.
type IdempotencyGuard struct {
	repo        repo_interfaces.IdempotencyRepository
	inFlightTTL time.Duration
}

func NewIdempotencyGuard(repo repo_interfaces.IdempotencyRepository, inFlightTTL time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{repo: repo, inFlightTTL: inFlightTTL}
}

func (g *IdempotencyGuard) Begin(ctx context.Context, key, fingerprint string) (repo_interfaces.ClaimState, *domain.TransferOutcome, error) {
	state, outcome, err := g.repo.Claim(ctx, key, fingerprint, g.inFlightTTL)
	if err != nil {
		return "", nil, err
	}

	if state == repo_interfaces.ClaimResolved {
		logger.Info("idempotency guard replaying resolved outcome", logger.Fields{
			"status":    outcome.Status,
			"reference": outcome.Reference,
		})
	}

	return state, outcome, nil
}

func (g *IdempotencyGuard) Resolve(ctx context.Context, key string, outcome domain.TransferOutcome) error {
	return g.repo.Resolve(ctx, key, outcome)
}

func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	return g.repo.Release(ctx, key)
}

func (g *IdempotencyGuard) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return g.repo.PurgeExpired(ctx, retention)
}
