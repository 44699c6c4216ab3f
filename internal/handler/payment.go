package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gatewaylabs/payment-gateway/internal/auth"
	"github.com/gatewaylabs/payment-gateway/internal/domain"
	"github.com/gatewaylabs/payment-gateway/internal/logging"
	"github.com/gatewaylabs/payment-gateway/internal/service/ledger"
)

type paymentService interface {
	Pay(ctx context.Context, payerUserID, merchantAccountID uuid.UUID, amount domain.Money, description *string) (*ledger.PaymentResult, error)
}

type PaymentHandler struct {
	ledger paymentService
	bounds AmountBounds
}

func NewPaymentHandler(ledger paymentService, bounds AmountBounds) *PaymentHandler {
	return &PaymentHandler{ledger: ledger, bounds: bounds}
}

type payRequest struct {
	MerchantAccountID string  `json:"merchant_account_id"`
	Amount            string  `json:"amount"`
	Description       *string `json:"description"`
}

type paymentResultDTO struct {
	TransactionID uuid.UUID    `json:"transaction_id"`
	Amount        domain.Money `json:"amount"`
	Status        string       `json:"status"`
	MerchantName  string       `json:"merchant_name"`
	Description   *string      `json:"description"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	merchantAccountID, err := uuid.Parse(req.MerchantAccountID)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "merchant_account_id", Message: "must be a valid account id"}})
		return
	}

	amount, fields := h.bounds.ParseAmount(req.Amount)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	result, err := h.ledger.Pay(r.Context(), userID, merchantAccountID, amount, req.Description)
	if err != nil {
		log.Warn("payment rejected", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, paymentResultDTO{
		TransactionID: result.TransactionID,
		Amount:        result.Amount,
		Status:        string(result.Status),
		MerchantName:  result.MerchantName,
		Description:   result.Description,
		CreatedAt:     result.CreatedAt,
	})
}
