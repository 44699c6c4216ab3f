package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatewaylabs/payment-gateway/internal/domain"
	"github.com/gatewaylabs/payment-gateway/internal/logging"
)

const defaultDepositDescription = "Account deposit"

// Deposit credits the owner's account and appends an approved
// transaction with the account as both payer and merchant. No row lock
// is taken: a credit cannot push the balance negative, so the optimistic
// version check on the write is enough. Callers that lose the version
// race get ErrConcurrentModification and should retry.
func (s *Service) Deposit(ctx context.Context, ownerUserID uuid.UUID, amount domain.Money, description *string) error {
	log := logging.FromContext(ctx)

	if !amount.IsPositive() {
		return fmt.Errorf("Deposit: %w", domain.ErrInvalidAmount)
	}

	account, err := s.accounts.GetByUserID(ctx, ownerUserID)
	if err != nil {
		return fmt.Errorf("Deposit: %w", err)
	}

	newBalance, err := domain.Credit(account.Balance, amount)
	if err != nil {
		return fmt.Errorf("Deposit: %w", err)
	}

	if description == nil {
		d := defaultDepositDescription
		description = &d
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Deposit: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.accounts.UpdateBalance(ctx, tx, account.ID, newBalance, account.Version+1); err != nil {
		return fmt.Errorf("Deposit: update balance: %w", err)
	}

	txn := &domain.Transaction{
		ID:                uuid.New(),
		PayerAccountID:    account.ID,
		MerchantAccountID: account.ID,
		Amount:            amount,
		Status:            domain.TransactionStatusApproved,
		Description:       description,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.txlog.Create(ctx, tx, txn); err != nil {
		return fmt.Errorf("Deposit: create transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Deposit: commit: %w", err)
	}

	log.Info("deposit approved",
		"transaction_id", txn.ID,
		"account_id", account.ID,
		"amount", amount,
	)

	return nil
}
