package ledger

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/gatewaylabs/payment-gateway/internal/domain"
	"github.com/gatewaylabs/payment-gateway/internal/repository"
)

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance domain.Money, newVersion int64) error
}

type transactionLog interface {
	Create(ctx context.Context, q repository.Queryer, txn *domain.Transaction) error
	UpdateStatus(ctx context.Context, q repository.Queryer, id uuid.UUID, status domain.TransactionStatus) error
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Service is the ledger engine. It is the only writer of account
// balances and transaction statuses; all its state lives in the stores,
// so a single instance serves any number of concurrent requests.
type Service struct {
	accounts accountRepo
	txlog    transactionLog
	users    userRepo
	db       *sql.DB
}

func NewService(accounts accountRepo, txlog transactionLog, users userRepo, db *sql.DB) *Service {
	return &Service{
		accounts: accounts,
		txlog:    txlog,
		users:    users,
		db:       db,
	}
}
