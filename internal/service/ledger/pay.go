package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatewaylabs/payment-gateway/internal/domain"
	"github.com/gatewaylabs/payment-gateway/internal/logging"
)

type PaymentResult struct {
	TransactionID uuid.UUID
	Amount        domain.Money
	Status        domain.TransactionStatus
	MerchantName  string
	Description   *string
	CreatedAt     time.Time
}

// Pay moves amount from the caller's account to a merchant account.
//
// Only the payer's row is locked. The merchant side cannot fail the
// balance invariant, so its credit rides on the optimistic version
// check; keeping the lock scope to one row also means two parties paying
// each other at the same instant never wait on one another.
//
// The pending transaction record is committed before any balance write.
// A crash mid-transfer therefore leaves an auditable pending row rather
// than losing the attempt. Failures after that point roll the balance
// writes back, mark the record failed on a best-effort basis, and
// surface as ErrPaymentFailed wrapping the cause.
func (s *Service) Pay(ctx context.Context, payerUserID, merchantAccountID uuid.UUID, amount domain.Money, description *string) (*PaymentResult, error) {
	log := logging.FromContext(ctx)

	if !amount.IsPositive() {
		return nil, fmt.Errorf("Pay: %w", domain.ErrInvalidAmount)
	}

	payerAccount, err := s.accounts.GetByUserID(ctx, payerUserID)
	if err != nil {
		return nil, fmt.Errorf("Pay: payer: %w", err)
	}
	if payerAccount.ID == merchantAccountID {
		return nil, fmt.Errorf("Pay: %w", domain.ErrSelfPayment)
	}

	merchantAccount, err := s.accounts.GetByID(ctx, merchantAccountID)
	if err != nil {
		return nil, fmt.Errorf("Pay: merchant account: %w", err)
	}

	merchant, err := s.users.GetByID(ctx, merchantAccount.UserID)
	if err != nil {
		return nil, fmt.Errorf("Pay: merchant: %w", err)
	}
	if merchant.Role != domain.RoleMerchant {
		return nil, fmt.Errorf("Pay: %w", domain.ErrNotMerchant)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Pay: begin tx: %w", err)
	}
	defer tx.Rollback()

	// Serializes concurrent payments from the same payer. Blocks until
	// any in-flight transfer from this account commits or rolls back.
	payer, err := s.accounts.GetForUpdate(ctx, tx, payerAccount.ID)
	if err != nil {
		return nil, fmt.Errorf("Pay: lock payer: %w", err)
	}

	if payer.Balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("Pay: %w", domain.ErrInsufficientBalance)
	}

	txn := &domain.Transaction{
		ID:                uuid.New(),
		PayerAccountID:    payer.ID,
		MerchantAccountID: merchantAccount.ID,
		Amount:            amount,
		Status:            domain.TransactionStatusPending,
		Description:       description,
		CreatedAt:         time.Now().UTC(),
	}
	// Written on the pool connection, not inside tx: the pending row
	// must survive a rollback of the balance writes.
	if err := s.txlog.Create(ctx, s.db, txn); err != nil {
		return nil, fmt.Errorf("Pay: create transaction: %w", err)
	}

	if err := s.settle(ctx, tx, txn, payer, merchantAccount); err != nil {
		// Release the payer lock before touching the transaction row
		// again; the failure mark runs outside the aborted tx, and on a
		// detached context so a caller disconnect cannot strand the
		// record in pending.
		tx.Rollback()
		s.markFailed(context.WithoutCancel(ctx), txn.ID)

		log.Error("payment failed",
			"transaction_id", txn.ID,
			"payer_account_id", payer.ID,
			"merchant_account_id", merchantAccount.ID,
			"error", err,
		)
		return nil, fmt.Errorf("Pay: %w: %w", domain.ErrPaymentFailed, err)
	}

	log.Info("payment approved",
		"transaction_id", txn.ID,
		"payer_account_id", payer.ID,
		"merchant_account_id", merchantAccount.ID,
		"amount", amount,
	)

	return &PaymentResult{
		TransactionID: txn.ID,
		Amount:        txn.Amount,
		Status:        domain.TransactionStatusApproved,
		MerchantName:  merchant.Name,
		Description:   txn.Description,
		CreatedAt:     txn.CreatedAt,
	}, nil
}

// settle applies the balance mutation and finalizes the record. Debit
// before credit; both land in the same transaction as the approval so
// they become durable together at commit.
func (s *Service) settle(ctx context.Context, tx *sql.Tx, txn *domain.Transaction, payer, merchant *domain.Account) error {
	newPayerBalance, err := domain.Debit(payer.Balance, txn.Amount)
	if err != nil {
		return fmt.Errorf("settle: debit: %w", err)
	}
	newMerchantBalance, err := domain.Credit(merchant.Balance, txn.Amount)
	if err != nil {
		return fmt.Errorf("settle: credit: %w", err)
	}

	if err := s.accounts.UpdateBalance(ctx, tx, payer.ID, newPayerBalance, payer.Version+1); err != nil {
		return fmt.Errorf("settle: payer: %w", err)
	}
	if err := s.accounts.UpdateBalance(ctx, tx, merchant.ID, newMerchantBalance, merchant.Version+1); err != nil {
		return fmt.Errorf("settle: merchant: %w", err)
	}

	if err := s.txlog.UpdateStatus(ctx, tx, txn.ID, domain.TransactionStatusApproved); err != nil {
		return fmt.Errorf("settle: approve: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("settle: commit: %w", err)
	}
	return nil
}

// markFailed finalizes an orphaned pending record. Best effort: if this
// write fails too the row stays pending, which the log keeps for audit.
func (s *Service) markFailed(ctx context.Context, txnID uuid.UUID) {
	if err := s.txlog.UpdateStatus(ctx, s.db, txnID, domain.TransactionStatusFailed); err != nil {
		logging.FromContext(ctx).Error("could not mark transaction failed",
			"transaction_id", txnID,
			"error", err,
		)
	}
}
