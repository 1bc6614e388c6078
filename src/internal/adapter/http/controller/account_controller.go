package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/http/models"
	"github.com/api-sage/ledger-transfer-engine/src/internal/commons"
	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
	"github.com/api-sage/ledger-transfer-engine/src/internal/usecase/service_interfaces"
)

type AccountController struct {
	service service_interfaces.AccountService
}

func NewAccountController(service service_interfaces.AccountService) *AccountController {
	return &AccountController{service: service}
}

func (c *AccountController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	createHandler := http.HandlerFunc(c.createAccount)
	balanceHandler := http.HandlerFunc(c.getBalance)
	if authMiddleware != nil {
		createHandler = authMiddleware(createHandler).ServeHTTP
		balanceHandler = authMiddleware(balanceHandler).ServeHTTP
	}
	mux.Handle("/accounts", http.HandlerFunc(createHandler))
	mux.Handle("/accounts/balance", http.HandlerFunc(balanceHandler))
}

func (c *AccountController) createAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, commons.ErrorResponse[models.CreateAccountResponse]("method not allowed"))
		return
	}

	var req models.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, commons.ErrorResponse[models.CreateAccountResponse]("invalid request body", err.Error()))
		return
	}

	logRequest(r, req)

	response, err := c.service.CreateAccount(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if response.Message == "validation failed" {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, response)
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

func (c *AccountController) getBalance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, commons.ErrorResponse[models.BalanceResponse]("method not allowed"))
		return
	}

	accountID := r.URL.Query().Get("accountId")

	response, err := c.service.GetBalance(r.Context(), accountID)
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAccountNotFound):
		status = http.StatusNotFound
	case response.Message == "validation failed":
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}

	logResponse(r, status, response, start)
	writeJSON(w, status, response)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
