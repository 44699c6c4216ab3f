package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/gatewaylabs/payment-gateway/internal/auth"
	"github.com/gatewaylabs/payment-gateway/internal/domain"
	"github.com/gatewaylabs/payment-gateway/internal/logging"
	"github.com/gatewaylabs/payment-gateway/internal/service"
)

type depositService interface {
	Deposit(ctx context.Context, ownerUserID uuid.UUID, amount domain.Money, description *string) error
}

type balanceService interface {
	GetBalance(ctx context.Context, ownerUserID uuid.UUID) (*service.BalanceView, error)
}

type AccountHandler struct {
	ledger  depositService
	queries balanceService
	bounds  AmountBounds
}

func NewAccountHandler(ledger depositService, queries balanceService, bounds AmountBounds) *AccountHandler {
	return &AccountHandler{ledger: ledger, queries: queries, bounds: bounds}
}

type depositRequest struct {
	Amount      string  `json:"amount"`
	Description *string `json:"description"`
}

type balanceDTO struct {
	Balance           domain.Money `json:"balance"`
	AccountHolderName string       `json:"account_holder_name"`
}

func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	view, err := h.queries.GetBalance(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("balance lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, balanceDTO{
		Balance:           view.Balance,
		AccountHolderName: view.HolderName,
	})
}

func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	amount, fields := h.bounds.ParseAmount(req.Amount)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	if err := h.ledger.Deposit(r.Context(), userID, amount, req.Description); err != nil {
		logging.FromContext(r.Context()).Warn("deposit failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, nil)
}
