package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/http/models"
	"github.com/api-sage/ledger-transfer-engine/src/internal/commons"
	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
	"github.com/api-sage/ledger-transfer-engine/src/internal/usecase/service_interfaces"
)

type TransferController struct {
	service service_interfaces.TransferService
}

func NewTransferController(service service_interfaces.TransferService) *TransferController {
	return &TransferController{service: service}
}

func (c *TransferController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	handler := http.HandlerFunc(c.transfer)
	if authMiddleware != nil {
		handler = authMiddleware(handler).ServeHTTP
	}
	mux.Handle("/transfers", http.HandlerFunc(handler))
}

func (c *TransferController) transfer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, commons.ErrorResponse[models.TransferResponse]("method not allowed"))
		return
	}

	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logError(r, err, nil)
		writeJSON(w, http.StatusBadRequest, commons.ErrorResponse[models.TransferResponse]("invalid request body", err.Error()))
		return
	}

	// The header form wins over the body field; clients forward one stable
	// key per logical transfer attempt.
	if headerKey := strings.TrimSpace(r.Header.Get("Idempotency-Key")); headerKey != "" {
		req.IdempotencyKey = headerKey
	}

	logRequest(r, req)

	response, err := c.service.Transfer(r.Context(), req)
	status := transferStatusCode(response.Message, err)
	logResponse(r, status, response, start)
	writeJSON(w, status, response)
}

func transferStatusCode(message string, err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case message == "validation failed":
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameAccountTransfer),
		errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrKeyConflict),
		errors.Is(err, domain.ErrBusy),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
