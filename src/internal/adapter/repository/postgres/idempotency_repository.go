package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
	"github.com/api-sage/ledger-transfer-engine/src/internal/logger"
	"github.com/lib/pq"
)

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Claim(ctx context.Context, key, fingerprint string, inFlightTTL time.Duration) (repo_interfaces.ClaimState, *domain.TransferOutcome, error) {
	const insertQuery = `
INSERT INTO idempotency_keys (key, fingerprint, status)
VALUES ($1, $2, 'IN_FLIGHT')`

	_, err := r.db.ExecContext(ctx, insertQuery, key, fingerprint)
	if err == nil {
		return repo_interfaces.ClaimFresh, nil, nil
	}
	if !isUniqueViolation(err) {
		logger.Error("idempotency repository claim insert failed", err, nil)
		return "", nil, fmt.Errorf("claim idempotency key: %w", err)
	}

	const selectQuery = `
SELECT fingerprint, status, outcome
FROM idempotency_keys
WHERE key = $1`

	var storedFingerprint string
	var status string
	var outcomeJSON sql.NullString

	if err := r.db.QueryRowContext(ctx, selectQuery, key).Scan(&storedFingerprint, &status, &outcomeJSON); err != nil {
		if err == sql.ErrNoRows {
			// The competing row vanished between insert and read; let the
			// caller retry the request.
			return repo_interfaces.ClaimInFlight, nil, nil
		}
		logger.Error("idempotency repository claim read failed", err, nil)
		return "", nil, fmt.Errorf("read idempotency key: %w", err)
	}

	if storedFingerprint != fingerprint {
		return "", nil, domain.ErrKeyConflict
	}

	if status == "RESOLVED" && outcomeJSON.Valid {
		var outcome domain.TransferOutcome
		if err := json.Unmarshal([]byte(outcomeJSON.String), &outcome); err != nil {
			logger.Error("idempotency repository outcome decode failed", err, nil)
			return "", nil, fmt.Errorf("decode idempotency outcome: %w", err)
		}
		return repo_interfaces.ClaimResolved, &outcome, nil
	}

	// Reclaim in-flight rows abandoned by a crashed execution. A claimant
	// that is merely stalled past the TTL loses the key here and both
	// executions may apply; the TTL must stay well above the worst-case
	// transfer duration.
	const reclaimQuery = `
UPDATE idempotency_keys
SET created_at = NOW()
WHERE key = $1
  AND status = 'IN_FLIGHT'
  AND created_at < NOW() - make_interval(secs => $2)`

	result, err := r.db.ExecContext(ctx, reclaimQuery, key, inFlightTTL.Seconds())
	if err != nil {
		logger.Error("idempotency repository reclaim failed", err, nil)
		return "", nil, fmt.Errorf("reclaim idempotency key: %w", err)
	}

	reclaimed, err := result.RowsAffected()
	if err != nil {
		return "", nil, fmt.Errorf("reclaim idempotency key: %w", err)
	}
	if reclaimed == 1 {
		return repo_interfaces.ClaimFresh, nil, nil
	}

	return repo_interfaces.ClaimInFlight, nil, nil
}

func (r *IdempotencyRepository) Resolve(ctx context.Context, key string, outcome domain.TransferOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode idempotency outcome: %w", err)
	}

	const query = `
UPDATE idempotency_keys
SET status = 'RESOLVED',
    outcome = $2,
    resolved_at = NOW()
WHERE key = $1`

	if _, err := r.db.ExecContext(ctx, query, key, string(payload)); err != nil {
		logger.Error("idempotency repository resolve failed", err, logger.Fields{
			"status": outcome.Status,
		})
		return fmt.Errorf("resolve idempotency key: %w", err)
	}

	return nil
}

func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	const query = `DELETE FROM idempotency_keys WHERE key = $1 AND status = 'IN_FLIGHT'`

	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		logger.Error("idempotency repository release failed", err, nil)
		return fmt.Errorf("release idempotency key: %w", err)
	}

	return nil
}

func (r *IdempotencyRepository) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	const query = `
DELETE FROM idempotency_keys
WHERE status = 'RESOLVED'
  AND resolved_at < NOW() - make_interval(secs => $1)`

	result, err := r.db.ExecContext(ctx, query, retention.Seconds())
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}

	return removed, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == "23505"
	}
	return false
}
