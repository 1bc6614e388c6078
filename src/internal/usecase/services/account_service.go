package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/http/models"
	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/api-sage/ledger-transfer-engine/src/internal/commons"
	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
	"github.com/api-sage/ledger-transfer-engine/src/internal/logger"
)

type AccountService struct {
	ledgerRepo repo_interfaces.LedgerRepository
}

func NewAccountService(ledgerRepo repo_interfaces.LedgerRepository) *AccountService {
	return &AccountService{ledgerRepo: ledgerRepo}
}

func (s *AccountService) CreateAccount(ctx context.Context, req models.CreateAccountRequest) (commons.Response[models.CreateAccountResponse], error) {
	logger.Info("account service create account request", logger.Fields{
		"payload": logger.SanitizePayload(req),
	})

	if err := req.Validate(); err != nil {
		logger.Error("account service create account validation failed", err, nil)
		return commons.ErrorResponse[models.CreateAccountResponse]("validation failed", err.Error()), err
	}

	account := domain.Account{
		ID:      strings.TrimSpace(req.AccountID),
		Balance: req.OpeningBalanceMinorUnits(),
	}

	created, err := s.ledgerRepo.CreateAccount(ctx, account)
	if err != nil {
		logger.Error("account service create account repository failed", err, logger.Fields{
			"accountId": account.ID,
		})
		return commons.ErrorResponse[models.CreateAccountResponse]("failed to create account", "Unable to create account right now"), err
	}

	response := models.CreateAccountResponse{
		AccountID: created.ID,
		Balance:   models.FormatMinorUnits(created.Balance),
		CreatedAt: created.CreatedAt.UTC().Format(time.RFC3339),
	}

	logger.Info("account service create account success", logger.Fields{
		"accountId": response.AccountID,
	})

	return commons.SuccessResponse("account created successfully", response), nil
}

func (s *AccountService) GetBalance(ctx context.Context, accountID string) (commons.Response[models.BalanceResponse], error) {
	trimmedID := strings.TrimSpace(accountID)
	if trimmedID == "" {
		err := errors.New("accountId is required")
		return commons.ErrorResponse[models.BalanceResponse]("validation failed", err.Error()), err
	}

	balance, _, err := s.ledgerRepo.GetBalance(ctx, trimmedID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return commons.ErrorResponse[models.BalanceResponse]("account not found", err.Error()), err
		}
		logger.Error("account service get balance failed", err, logger.Fields{
			"accountId": trimmedID,
		})
		return commons.ErrorResponse[models.BalanceResponse]("failed to fetch balance", "Unable to fetch balance right now"), err
	}

	response := models.BalanceResponse{
		AccountID:         trimmedID,
		Balance:           models.FormatMinorUnits(balance),
		BalanceMinorUnits: balance,
	}

	return commons.SuccessResponse("balance fetched successfully", response), nil
}
