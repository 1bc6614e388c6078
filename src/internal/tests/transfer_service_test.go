package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/http/models"
	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/repository/memory"
	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
	"github.com/api-sage/ledger-transfer-engine/src/internal/usecase/services"
)

type transferFixture struct {
	service *services.TransferService
	ledger  *memory.LedgerRepository
	idem    *memory.IdempotencyRepository
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()

	ledger := memory.NewLedgerRepository()
	idem := memory.NewIdempotencyRepository()
	guard := services.NewIdempotencyGuard(idem, time.Minute)
	locker := services.NewAccountLocker()

	return &transferFixture{
		service: services.NewTransferService(ledger, guard, locker, 5, time.Second),
		ledger:  ledger,
		idem:    idem,
	}
}

func (f *transferFixture) createAccount(t *testing.T, id string, balanceMinorUnits int64) {
	t.Helper()

	_, err := f.ledger.CreateAccount(context.Background(), domain.Account{ID: id, Balance: balanceMinorUnits})
	if err != nil {
		t.Fatalf("create account %s: %v", id, err)
	}
}

func (f *transferFixture) balance(t *testing.T, id string) int64 {
	t.Helper()

	balance, _, err := f.ledger.GetBalance(context.Background(), id)
	if err != nil {
		t.Fatalf("get balance %s: %v", id, err)
	}
	return balance
}

func transferRequest(source, dest, amount, key string) models.TransferRequest {
	return models.TransferRequest{
		SourceAccountID:      source,
		DestinationAccountID: dest,
		Amount:               amount,
		IdempotencyKey:       key,
	}
}

func TestTransferCommitsAndMovesBalance(t *testing.T) {
	f := newTransferFixture(t)
	f.createAccount(t, "A", 10000)
	f.createAccount(t, "B", 5000)

	response, err := f.service.Transfer(context.Background(), transferRequest("A", "B", "30.00", "k1"))
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !response.Success {
		t.Fatalf("expected success response, got message %q", response.Message)
	}
	if response.Data == nil || response.Data.Status != string(domain.TransferStatusCommitted) {
		t.Fatalf("expected committed status, got %+v", response.Data)
	}
	if response.Data.NewSourceBalance != "70.00" || response.Data.NewDestBalance != "80.00" {
		t.Fatalf("unexpected balances in response: %+v", response.Data)
	}

	if got := f.balance(t, "A"); got != 7000 {
		t.Fatalf("expected source balance 7000, got %d", got)
	}
	if got := f.balance(t, "B"); got != 8000 {
		t.Fatalf("expected destination balance 8000, got %d", got)
	}
}

func TestTransferInsufficientFundsRejected(t *testing.T) {
	f := newTransferFixture(t)
	f.createAccount(t, "A", 2000)
	f.createAccount(t, "B", 5000)

	response, err := f.service.Transfer(context.Background(), transferRequest("A", "B", "30.00", "k2"))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if response.Data == nil || response.Data.Reason != domain.ReasonInsufficientFunds {
		t.Fatalf("expected insufficient funds reason, got %+v", response.Data)
	}
	if response.Data.CurrentSourceBalance != "20.00" || response.Data.CurrentDestBalance != "50.00" {
		t.Fatalf("expected untouched balances in response, got %+v", response.Data)
	}

	if got := f.balance(t, "A"); got != 2000 {
		t.Fatalf("rejected transfer mutated source balance: %d", got)
	}
	if got := f.balance(t, "B"); got != 5000 {
		t.Fatalf("rejected transfer mutated destination balance: %d", got)
	}
}

func TestTransferIdempotentReplay(t *testing.T) {
	f := newTransferFixture(t)
	f.createAccount(t, "A", 10000)
	f.createAccount(t, "B", 5000)

	first, err := f.service.Transfer(context.Background(), transferRequest("A", "B", "10.00", "k3"))
	if err != nil {
		t.Fatalf("first transfer failed: %v", err)
	}

	second, err := f.service.Transfer(context.Background(), transferRequest("A", "B", "10.00", "k3"))
	if err != nil {
		t.Fatalf("replayed transfer failed: %v", err)
	}

	if first.Data.Reference != second.Data.Reference {
		t.Fatalf("replay returned a different outcome: %q vs %q", first.Data.Reference, second.Data.Reference)
	}
	if second.Data.NewSourceBalance != "90.00" || second.Data.NewDestBalance != "60.00" {
		t.Fatalf("replay changed the recorded balances: %+v", second.Data)
	}

	if got := f.balance(t, "A"); got != 9000 {
		t.Fatalf("balances applied more than once: source %d", got)
	}
	if got := f.balance(t, "B"); got != 6000 {
		t.Fatalf("balances applied more than once: destination %d", got)
	}
}

func TestTransferKeyConflict(t *testing.T) {
	f := newTransferFixture(t)
	f.createAccount(t, "A", 10000)
	f.createAccount(t, "B", 5000)

	if _, err := f.service.Transfer(context.Background(), transferRequest("A", "B", "10.00", "k4")); err != nil {
		t.Fatalf("first transfer failed: %v", err)
	}

	_, err := f.service.Transfer(context.Background(), transferRequest("A", "B", "25.00", "k4"))
	if !errors.Is(err, domain.ErrKeyConflict) {
		t.Fatalf("expected ErrKeyConflict, got %v", err)
	}

	if got := f.balance(t, "A"); got != 9000 {
		t.Fatalf("key conflict mutated source balance: %d", got)
	}
	if got := f.balance(t, "B"); got != 6000 {
		t.Fatalf("key conflict mutated destination balance: %d", got)
	}
}

func TestTransferUnknownDestinationRejected(t *testing.T) {
	f := newTransferFixture(t)
	f.createAccount(t, "A", 10000)

	response, err := f.service.Transfer(context.Background(), transferRequest("A", "ghost", "10.00", "k5"))
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if response.Data == nil || response.Data.Reason != domain.ReasonAccountNotFound {
		t.Fatalf("expected account not found reason, got %+v", response.Data)
	}

	if got := f.balance(t, "A"); got != 10000 {
		t.Fatalf("rejected transfer mutated source balance: %d", got)
	}

	// The rejection is terminal for the key: a retry replays it verbatim even
	// if the destination appears in the meantime.
	f.createAccount(t, "ghost", 0)
	_, err = f.service.Transfer(context.Background(), transferRequest("A", "ghost", "10.00", "k5"))
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected replayed rejection, got %v", err)
	}
	if got := f.balance(t, "A"); got != 10000 {
		t.Fatalf("replayed rejection mutated source balance: %d", got)
	}
}

func TestTransferSameAccountRejected(t *testing.T) {
	f := newTransferFixture(t)
	f.createAccount(t, "A", 10000)

	_, err := f.service.Transfer(context.Background(), transferRequest("A", "A", "10.00", "k6"))
	if !errors.Is(err, domain.ErrSameAccountTransfer) {
		t.Fatalf("expected ErrSameAccountTransfer, got %v", err)
	}

	if got := f.balance(t, "A"); got != 10000 {
		t.Fatalf("same-account transfer mutated balance: %d", got)
	}
}

func TestTransferValidationRejectsBadRequests(t *testing.T) {
	f := newTransferFixture(t)

	cases := []struct {
		name string
		req  models.TransferRequest
	}{
		{"missing amount", transferRequest("A", "B", "", "k7")},
		{"negative amount", transferRequest("A", "B", "-5.00", "k8")},
		{"zero amount", transferRequest("A", "B", "0", "k9")},
		{"sub-minor precision", transferRequest("A", "B", "1.001", "k10")},
		{"missing key", transferRequest("A", "B", "5.00", "")},
		{"missing source", transferRequest("", "B", "5.00", "k11")},
	}

	for _, tc := range cases {
		if _, err := f.service.Transfer(context.Background(), tc.req); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestTransferBusyWhileKeyInFlight(t *testing.T) {
	f := newTransferFixture(t)
	f.createAccount(t, "A", 10000)
	f.createAccount(t, "B", 5000)

	fingerprint := domain.TransferFingerprint("A", "B", 1000)
	if _, _, err := f.idem.Claim(context.Background(), "k12", fingerprint, time.Minute); err != nil {
		t.Fatalf("claim key: %v", err)
	}

	_, err := f.service.Transfer(context.Background(), transferRequest("A", "B", "10.00", "k12"))
	if !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected ErrBusy for in-flight key, got %v", err)
	}

	if got := f.balance(t, "A"); got != 10000 {
		t.Fatalf("busy transfer mutated source balance: %d", got)
	}
}

func TestTransferConservesTotalBalance(t *testing.T) {
	f := newTransferFixture(t)
	f.createAccount(t, "A", 10000)
	f.createAccount(t, "B", 5000)
	f.createAccount(t, "C", 2500)

	before, err := f.ledger.SumBalances(context.Background())
	if err != nil {
		t.Fatalf("sum balances: %v", err)
	}

	requests := []models.TransferRequest{
		transferRequest("A", "B", "25.00", "c1"),
		transferRequest("B", "C", "60.00", "c2"),
		transferRequest("C", "A", "80.00", "c3"),
		transferRequest("A", "C", "999.99", "c4"), // rejected, insufficient funds
		transferRequest("B", "A", "5.00", "c5"),
	}

	for _, req := range requests {
		_, _ = f.service.Transfer(context.Background(), req)
	}

	after, err := f.ledger.SumBalances(context.Background())
	if err != nil {
		t.Fatalf("sum balances: %v", err)
	}
	if before != after {
		t.Fatalf("total balance changed: before %d, after %d", before, after)
	}
}
