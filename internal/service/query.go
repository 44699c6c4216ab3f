package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatewaylabs/payment-gateway/internal/domain"
)

type accountReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
}

type userReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type transactionFinder interface {
	FindByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
}

type BalanceView struct {
	Balance    domain.Money
	HolderName string
}

type TransactionView struct {
	ID           uuid.UUID
	Amount       domain.Money
	Status       domain.TransactionStatus
	PayerName    string
	MerchantName string
	Description  *string
	CreatedAt    time.Time
}

// QueryService serves read-only balance and history lookups. It never
// locks and never writes.
type QueryService struct {
	accounts accountReader
	users    userReader
	txlog    transactionFinder
}

func NewQueryService(accounts accountReader, users userReader, txlog transactionFinder) *QueryService {
	return &QueryService{accounts: accounts, users: users, txlog: txlog}
}

func (s *QueryService) GetBalance(ctx context.Context, ownerUserID uuid.UUID) (*BalanceView, error) {
	account, err := s.accounts.GetByUserID(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}

	owner, err := s.users.GetByID(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}

	return &BalanceView{Balance: account.Balance, HolderName: owner.Name}, nil
}

// GetHistory returns the owner's transactions, most recent first, with
// counterparty display names resolved. Name lookups are memoized per
// call since a history usually repeats a handful of counterparties.
func (s *QueryService) GetHistory(ctx context.Context, ownerUserID uuid.UUID) ([]TransactionView, error) {
	account, err := s.accounts.GetByUserID(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("GetHistory: %w", err)
	}

	txns, err := s.txlog.FindByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("GetHistory: %w", err)
	}

	names := map[uuid.UUID]string{}
	views := make([]TransactionView, 0, len(txns))
	for _, txn := range txns {
		payerName, err := s.holderName(ctx, names, txn.PayerAccountID)
		if err != nil {
			return nil, fmt.Errorf("GetHistory: %w", err)
		}
		merchantName, err := s.holderName(ctx, names, txn.MerchantAccountID)
		if err != nil {
			return nil, fmt.Errorf("GetHistory: %w", err)
		}

		views = append(views, TransactionView{
			ID:           txn.ID,
			Amount:       txn.Amount,
			Status:       txn.Status,
			PayerName:    payerName,
			MerchantName: merchantName,
			Description:  txn.Description,
			CreatedAt:    txn.CreatedAt,
		})
	}

	return views, nil
}

func (s *QueryService) holderName(ctx context.Context, memo map[uuid.UUID]string, accountID uuid.UUID) (string, error) {
	if name, ok := memo[accountID]; ok {
		return name, nil
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("holderName: %w", err)
	}
	holder, err := s.users.GetByID(ctx, account.UserID)
	if err != nil {
		return "", fmt.Errorf("holderName: %w", err)
	}

	memo[accountID] = holder.Name
	return holder.Name, nil
}
