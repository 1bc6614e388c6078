package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/http/models"
	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/api-sage/ledger-transfer-engine/src/internal/commons"
	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
	"github.com/api-sage/ledger-transfer-engine/src/internal/logger"
	"github.com/google/uuid"
)

type TransferService struct {
	ledgerRepo       repo_interfaces.LedgerRepository
	guard            *IdempotencyGuard
	locker           *AccountLocker
	maxApplyAttempts int
	lockWaitTimeout  time.Duration
}

func NewTransferService(
	ledgerRepo repo_interfaces.LedgerRepository,
	guard *IdempotencyGuard,
	locker *AccountLocker,
	maxApplyAttempts int,
	lockWaitTimeout time.Duration,
) *TransferService {
	if maxApplyAttempts < 1 {
		maxApplyAttempts = 1
	}

	return &TransferService{
		ledgerRepo:       ledgerRepo,
		guard:            guard,
		locker:           locker,
		maxApplyAttempts: maxApplyAttempts,
		lockWaitTimeout:  lockWaitTimeout,
	}
}

func (s *TransferService) Transfer(ctx context.Context, req models.TransferRequest) (commons.Response[models.TransferResponse], error) {
	logger.Info("transfer service transfer request", logger.Fields{
		"payload": logger.SanitizePayload(req),
	})

	if err := req.Validate(); err != nil {
		return commons.ErrorResponse[models.TransferResponse]("validation failed", err.Error()), err
	}

	sourceID := strings.TrimSpace(req.SourceAccountID)
	destID := strings.TrimSpace(req.DestinationAccountID)
	amount := req.AmountMinorUnits()
	key := strings.TrimSpace(req.IdempotencyKey)

	if amount <= 0 {
		err := domain.ErrInvalidAmount
		return rejectedResponse(sourceID, destID, amount, domain.ReasonInvalidAmount, "", ""), err
	}
	if sourceID == destID {
		err := domain.ErrSameAccountTransfer
		return rejectedResponse(sourceID, destID, amount, domain.ReasonSameAccountTransfer, "", ""), err
	}

	fingerprint := domain.TransferFingerprint(sourceID, destID, amount)
	state, priorOutcome, err := s.guard.Begin(ctx, key, fingerprint)
	if err != nil {
		if errors.Is(err, domain.ErrKeyConflict) {
			return commons.ErrorResponse[models.TransferResponse]("idempotency key conflict", err.Error()), err
		}
		logger.Error("transfer service idempotency begin failed", err, nil)
		return commons.ErrorResponse[models.TransferResponse]("failed to process transfer", "Unable to process transfer right now"), err
	}

	switch state {
	case repo_interfaces.ClaimResolved:
		return s.replayOutcome(*priorOutcome)
	case repo_interfaces.ClaimInFlight:
		err := domain.ErrBusy
		return commons.ErrorResponse[models.TransferResponse]("transfer already in flight", err.Error()), err
	}

	// Fresh claim from here on: every exit path must resolve or release the key.
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWaitTimeout)
	defer cancel()

	release, err := s.locker.Acquire(lockCtx, sourceID, destID)
	if err != nil {
		s.releaseClaim(ctx, key)
		return commons.ErrorResponse[models.TransferResponse]("transfer is busy", err.Error()), err
	}
	defer release()

	// Verify both accounts exist before performing either mutation.
	sourceBalance, sourceVersion, err := s.ledgerRepo.GetBalance(ctx, sourceID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return s.resolveRejection(ctx, key, sourceID, destID, amount, domain.ReasonAccountNotFound, "", "")
		}
		s.releaseClaim(ctx, key)
		return commons.ErrorResponse[models.TransferResponse]("failed to process transfer", "Unable to process transfer right now"), err
	}

	destBalance, destVersion, err := s.ledgerRepo.GetBalance(ctx, destID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return s.resolveRejection(ctx, key, sourceID, destID, amount, domain.ReasonAccountNotFound, models.FormatMinorUnits(sourceBalance), "")
		}
		s.releaseClaim(ctx, key)
		return commons.ErrorResponse[models.TransferResponse]("failed to process transfer", "Unable to process transfer right now"), err
	}

	if sourceBalance < amount {
		return s.resolveRejection(ctx, key, sourceID, destID, amount, domain.ReasonInsufficientFunds,
			models.FormatMinorUnits(sourceBalance), models.FormatMinorUnits(destBalance))
	}

	newSourceBalance, _, err := s.applyWithRetry(ctx, sourceID, -amount, sourceVersion)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds):
			return s.resolveRejection(ctx, key, sourceID, destID, amount, domain.ReasonInsufficientFunds,
				models.FormatMinorUnits(sourceBalance), models.FormatMinorUnits(destBalance))
		case errors.Is(err, domain.ErrAccountNotFound):
			return s.resolveRejection(ctx, key, sourceID, destID, amount, domain.ReasonAccountNotFound, "", "")
		default:
			s.releaseClaim(ctx, key)
			return commons.ErrorResponse[models.TransferResponse]("transfer conflicted, retry later", err.Error()), err
		}
	}

	// The debit has committed. From here the operation runs to a credit
	// commit, a compensating reversal, or an Inconsistent halt; caller
	// cancellation no longer applies.
	detached := context.WithoutCancel(ctx)

	newDestBalance, _, err := s.applyWithRetry(detached, destID, amount, destVersion)
	if err != nil {
		return s.recoverFailedCredit(detached, key, sourceID, destID, amount, newSourceBalance, err)
	}

	outcome := domain.TransferOutcome{
		Reference:            uuid.NewString(),
		Status:               domain.TransferStatusCommitted,
		SourceAccountID:      sourceID,
		DestinationAccountID: destID,
		AmountMinorUnits:     amount,
		NewSourceBalance:     newSourceBalance,
		NewDestBalance:       newDestBalance,
		ResolvedAt:           time.Now().UTC(),
	}

	if err := s.guard.Resolve(detached, key, outcome); err != nil {
		// The balances are already applied; losing the outcome record only
		// weakens retry replay, so log and continue.
		logger.Error("transfer service resolve committed outcome failed", err, logger.Fields{
			"reference": outcome.Reference,
		})
	}

	logger.Info("transfer service transfer committed", logger.Fields{
		"reference":            outcome.Reference,
		"sourceAccountId":      sourceID,
		"destinationAccountId": destID,
		"amountMinorUnits":     amount,
	})

	return commons.SuccessResponse("transfer committed", outcomeToResponse(outcome)), nil
}

// applyWithRetry drives ConditionalApply through version conflicts, re-reading
// the record before each retry, up to the configured attempt budget.
func (s *TransferService) applyWithRetry(ctx context.Context, accountID string, delta int64, expectedVersion int64) (int64, int64, error) {
	version := expectedVersion

	for attempt := 0; attempt < s.maxApplyAttempts; attempt++ {
		newBalance, newVersion, err := s.ledgerRepo.ConditionalApply(ctx, accountID, delta, version)
		if err == nil {
			return newBalance, newVersion, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return 0, 0, err
		}

		_, currentVersion, readErr := s.ledgerRepo.GetBalance(ctx, accountID)
		if readErr != nil {
			return 0, 0, readErr
		}
		version = currentVersion
	}

	return 0, 0, fmt.Errorf("apply delta to account %q: %w", accountID, domain.ErrConflict)
}

// recoverFailedCredit handles the window after a committed debit. A vanished
// destination is the fatal inconsistency: the key is halted with an
// Inconsistent outcome. Any other credit failure is unwound by re-crediting
// the source, leaving zero net change.
func (s *TransferService) recoverFailedCredit(ctx context.Context, key, sourceID, destID string, amount, sourceBalanceAfterDebit int64, creditErr error) (commons.Response[models.TransferResponse], error) {
	if errors.Is(creditErr, domain.ErrAccountNotFound) {
		return s.resolveInconsistent(ctx, key, sourceID, destID, amount, creditErr)
	}

	logger.Error("transfer service credit failed after debit, reversing", creditErr, logger.Fields{
		"sourceAccountId":      sourceID,
		"destinationAccountId": destID,
		"amountMinorUnits":     amount,
	})

	_, sourceVersion, err := s.ledgerRepo.GetBalance(ctx, sourceID)
	if err == nil {
		_, _, err = s.applyWithRetry(ctx, sourceID, amount, sourceVersion)
	}
	if err != nil {
		logger.Error("transfer service compensating reversal failed", err, logger.Fields{
			"sourceAccountId":  sourceID,
			"amountMinorUnits": amount,
		})
		return s.resolveInconsistent(ctx, key, sourceID, destID, amount, err)
	}

	logger.Info("transfer service debit reversed after failed credit", logger.Fields{
		"sourceAccountId":             sourceID,
		"amountMinorUnits":            amount,
		"sourceBalanceBeforeReversal": sourceBalanceAfterDebit,
	})

	s.releaseClaim(ctx, key)
	return commons.ErrorResponse[models.TransferResponse]("transfer aborted, retry later", creditErr.Error()), creditErr
}

func (s *TransferService) resolveInconsistent(ctx context.Context, key, sourceID, destID string, amount int64, cause error) (commons.Response[models.TransferResponse], error) {
	logger.Error("transfer service ledger inconsistency, key halted", cause, logger.Fields{
		"sourceAccountId":      sourceID,
		"destinationAccountId": destID,
		"amountMinorUnits":     amount,
	})

	outcome := domain.TransferOutcome{
		Reference:            uuid.NewString(),
		Status:               domain.TransferStatusInconsistent,
		Reason:               domain.ReasonInconsistent,
		SourceAccountID:      sourceID,
		DestinationAccountID: destID,
		AmountMinorUnits:     amount,
		ResolvedAt:           time.Now().UTC(),
	}

	if err := s.guard.Resolve(ctx, key, outcome); err != nil {
		logger.Error("transfer service resolve inconsistent outcome failed", err, nil)
	}

	return commons.ErrorResponseWithData("ledger inconsistency, manual reconciliation required",
		outcomeToResponse(outcome), domain.ErrInconsistent.Error()), domain.ErrInconsistent
}

// resolveRejection records a terminal rejected outcome against the key and
// reports the untouched balances.
func (s *TransferService) resolveRejection(ctx context.Context, key, sourceID, destID string, amount int64, reason, currentSourceBalance, currentDestBalance string) (commons.Response[models.TransferResponse], error) {
	outcome := domain.TransferOutcome{
		Reference:            uuid.NewString(),
		Status:               domain.TransferStatusRejected,
		Reason:               reason,
		SourceAccountID:      sourceID,
		DestinationAccountID: destID,
		AmountMinorUnits:     amount,
		ResolvedAt:           time.Now().UTC(),
	}

	if err := s.guard.Resolve(ctx, key, outcome); err != nil {
		logger.Error("transfer service resolve rejected outcome failed", err, logger.Fields{
			"reason": reason,
		})
	}

	rejectionErr := domain.ErrorForReason(reason)
	response := rejectedResponse(sourceID, destID, amount, reason, currentSourceBalance, currentDestBalance)

	logger.Info("transfer service transfer rejected", logger.Fields{
		"sourceAccountId":      sourceID,
		"destinationAccountId": destID,
		"amountMinorUnits":     amount,
		"reason":               reason,
	})

	return response, rejectionErr
}

// replayOutcome rebuilds the original response for a retried key without
// re-validating or re-applying anything.
func (s *TransferService) replayOutcome(outcome domain.TransferOutcome) (commons.Response[models.TransferResponse], error) {
	switch outcome.Status {
	case domain.TransferStatusCommitted:
		return commons.SuccessResponse("transfer committed", outcomeToResponse(outcome)), nil
	case domain.TransferStatusInconsistent:
		return commons.ErrorResponseWithData("ledger inconsistency, manual reconciliation required",
			outcomeToResponse(outcome), domain.ErrInconsistent.Error()), domain.ErrInconsistent
	default:
		rejectionErr := domain.ErrorForReason(outcome.Reason)
		message := "transfer rejected"
		if rejectionErr != nil {
			message = rejectionErr.Error()
		}
		return commons.ErrorResponseWithData("transfer rejected", outcomeToResponse(outcome), message), rejectionErr
	}
}

func (s *TransferService) releaseClaim(ctx context.Context, key string) {
	if err := s.guard.Release(context.WithoutCancel(ctx), key); err != nil {
		logger.Error("transfer service release idempotency claim failed", err, nil)
	}
}

func rejectedResponse(sourceID, destID string, amount int64, reason, currentSourceBalance, currentDestBalance string) commons.Response[models.TransferResponse] {
	response := models.TransferResponse{
		Status:               string(domain.TransferStatusRejected),
		Reason:               reason,
		SourceAccountID:      sourceID,
		DestinationAccountID: destID,
		Amount:               models.FormatMinorUnits(amount),
		CurrentSourceBalance: currentSourceBalance,
		CurrentDestBalance:   currentDestBalance,
	}

	message := "transfer rejected"
	if err := domain.ErrorForReason(reason); err != nil {
		message = err.Error()
	}

	return commons.ErrorResponseWithData("transfer rejected", response, message)
}

func outcomeToResponse(outcome domain.TransferOutcome) models.TransferResponse {
	response := models.TransferResponse{
		Reference:            outcome.Reference,
		Status:               string(outcome.Status),
		Reason:               outcome.Reason,
		SourceAccountID:      outcome.SourceAccountID,
		DestinationAccountID: outcome.DestinationAccountID,
		Amount:               models.FormatMinorUnits(outcome.AmountMinorUnits),
	}

	if outcome.Status == domain.TransferStatusCommitted {
		response.NewSourceBalance = models.FormatMinorUnits(outcome.NewSourceBalance)
		response.NewDestBalance = models.FormatMinorUnits(outcome.NewDestBalance)
	}

	return response
}
