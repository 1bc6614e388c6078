package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/repository/memory"
	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
	"github.com/api-sage/ledger-transfer-engine/src/internal/usecase/services"
)

func TestIdempotencyGuardLifecycle(t *testing.T) {
	guard := services.NewIdempotencyGuard(memory.NewIdempotencyRepository(), time.Minute)
	ctx := context.Background()

	state, _, err := guard.Begin(ctx, "key-1", "A|B|1000")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if state != repo_interfaces.ClaimFresh {
		t.Fatalf("expected fresh claim, got %s", state)
	}

	state, _, err = guard.Begin(ctx, "key-1", "A|B|1000")
	if err != nil {
		t.Fatalf("second begin: %v", err)
	}
	if state != repo_interfaces.ClaimInFlight {
		t.Fatalf("expected in-flight claim, got %s", state)
	}

	outcome := domain.TransferOutcome{
		Reference:            "ref-1",
		Status:               domain.TransferStatusCommitted,
		SourceAccountID:      "A",
		DestinationAccountID: "B",
		AmountMinorUnits:     1000,
		ResolvedAt:           time.Now().UTC(),
	}
	if err := guard.Resolve(ctx, "key-1", outcome); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	state, replayed, err := guard.Begin(ctx, "key-1", "A|B|1000")
	if err != nil {
		t.Fatalf("begin after resolve: %v", err)
	}
	if state != repo_interfaces.ClaimResolved {
		t.Fatalf("expected resolved claim, got %s", state)
	}
	if replayed == nil || replayed.Reference != "ref-1" {
		t.Fatalf("expected recorded outcome replayed, got %+v", replayed)
	}
}

func TestIdempotencyGuardFingerprintMismatch(t *testing.T) {
	guard := services.NewIdempotencyGuard(memory.NewIdempotencyRepository(), time.Minute)
	ctx := context.Background()

	if _, _, err := guard.Begin(ctx, "key-2", "A|B|1000"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	_, _, err := guard.Begin(ctx, "key-2", "A|B|2500")
	if !errors.Is(err, domain.ErrKeyConflict) {
		t.Fatalf("expected ErrKeyConflict, got %v", err)
	}
}

func TestIdempotencyGuardReclaimsStaleInFlight(t *testing.T) {
	guard := services.NewIdempotencyGuard(memory.NewIdempotencyRepository(), 10*time.Millisecond)
	ctx := context.Background()

	state, _, err := guard.Begin(ctx, "key-3", "A|B|1000")
	if err != nil || state != repo_interfaces.ClaimFresh {
		t.Fatalf("first begin: state=%s err=%v", state, err)
	}

	time.Sleep(25 * time.Millisecond)

	state, _, err = guard.Begin(ctx, "key-3", "A|B|1000")
	if err != nil {
		t.Fatalf("begin after ttl: %v", err)
	}
	if state != repo_interfaces.ClaimFresh {
		t.Fatalf("expected stale in-flight claim to be reclaimed, got %s", state)
	}
}

func TestIdempotencyGuardReleaseAllowsRetry(t *testing.T) {
	guard := services.NewIdempotencyGuard(memory.NewIdempotencyRepository(), time.Minute)
	ctx := context.Background()

	if _, _, err := guard.Begin(ctx, "key-4", "A|B|1000"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := guard.Release(ctx, "key-4"); err != nil {
		t.Fatalf("release: %v", err)
	}

	state, _, err := guard.Begin(ctx, "key-4", "A|B|1000")
	if err != nil {
		t.Fatalf("begin after release: %v", err)
	}
	if state != repo_interfaces.ClaimFresh {
		t.Fatalf("expected fresh claim after release, got %s", state)
	}
}

func TestIdempotencyGuardPurgeExpired(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	guard := services.NewIdempotencyGuard(repo, time.Minute)
	ctx := context.Background()

	if _, _, err := guard.Begin(ctx, "key-5", "A|B|1000"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	outcome := domain.TransferOutcome{
		Reference:            "ref-5",
		Status:               domain.TransferStatusCommitted,
		SourceAccountID:      "A",
		DestinationAccountID: "B",
		AmountMinorUnits:     1000,
		ResolvedAt:           time.Now().UTC(),
	}
	if err := guard.Resolve(ctx, "key-5", outcome); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	time.Sleep(15 * time.Millisecond)

	removed, err := guard.PurgeExpired(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one purged key, got %d", removed)
	}

	state, _, err := guard.Begin(ctx, "key-5", "A|B|1000")
	if err != nil {
		t.Fatalf("begin after purge: %v", err)
	}
	if state != repo_interfaces.ClaimFresh {
		t.Fatalf("expected fresh claim after purge, got %s", state)
	}
}
