package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatewaylabs/payment-gateway/internal/domain"
	"github.com/gatewaylabs/payment-gateway/internal/logging"
	"github.com/gatewaylabs/payment-gateway/internal/repository"
)

type userStore interface {
	Create(ctx context.Context, q repository.Queryer, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type accountCreator interface {
	Create(ctx context.Context, q repository.Queryer, account *domain.Account) error
}

// RegistrationService creates a party and their zero-balance account in
// one unit of work. Accounts are created exactly once per party and are
// never deleted afterwards.
type RegistrationService struct {
	users    userStore
	accounts accountCreator
	db       *sql.DB
}

func NewRegistrationService(users userStore, accounts accountCreator, db *sql.DB) *RegistrationService {
	return &RegistrationService{users: users, accounts: accounts, db: db}
}

func (s *RegistrationService) Register(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	log := logging.FromContext(ctx)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("Register: %w", domain.ErrEmailTaken)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("Register: check existing: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("Register: hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
	}
	account := &domain.Account{
		ID:        uuid.New(),
		UserID:    user.ID,
		Balance:   domain.Money{},
		Version:   1,
		CreatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Register: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.users.Create(ctx, tx, user); err != nil {
		return nil, fmt.Errorf("Register: create user: %w", err)
	}
	if err := s.accounts.Create(ctx, tx, account); err != nil {
		return nil, fmt.Errorf("Register: create account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Register: commit: %w", err)
	}

	log.Info("party registered",
		"user_id", user.ID,
		"account_id", account.ID,
		"role", role,
	)

	return user, nil
}
