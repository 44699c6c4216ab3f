package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gatewaylabs/payment-gateway/internal/auth"
	"github.com/gatewaylabs/payment-gateway/internal/domain"
	"github.com/gatewaylabs/payment-gateway/internal/logging"
	"github.com/gatewaylabs/payment-gateway/internal/service"
)

type historyService interface {
	GetHistory(ctx context.Context, ownerUserID uuid.UUID) ([]service.TransactionView, error)
}

type TransactionHandler struct {
	queries historyService
}

func NewTransactionHandler(queries historyService) *TransactionHandler {
	return &TransactionHandler{queries: queries}
}

type transactionDTO struct {
	ID           uuid.UUID    `json:"id"`
	Amount       domain.Money `json:"amount"`
	Status       string       `json:"status"`
	PayerName    string       `json:"payer_name"`
	MerchantName string       `json:"merchant_name"`
	Description  *string      `json:"description"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	views, err := h.queries.GetHistory(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("history lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transactionDTO, len(views))
	for i, v := range views {
		dtos[i] = transactionDTO{
			ID:           v.ID,
			Amount:       v.Amount,
			Status:       string(v.Status),
			PayerName:    v.PayerName,
			MerchantName: v.MerchantName,
			Description:  v.Description,
			CreatedAt:    v.CreatedAt,
		}
	}

	RespondSuccess(w, http.StatusOK, dtos)
}
