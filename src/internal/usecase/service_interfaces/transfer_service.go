package service_interfaces

import (
	"context"

	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/http/models"
	"github.com/api-sage/ledger-transfer-engine/src/internal/commons"
)

type TransferService interface {
	Transfer(ctx context.Context, req models.TransferRequest) (commons.Response[models.TransferResponse], error)
}
