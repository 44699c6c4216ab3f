package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gatewaylabs/payment-gateway/internal/domain"
)

const transactionColumns = `id, payer_account_id, merchant_account_id, amount,
	status, description, created_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a transaction record. It takes a Queryer because the
// ledger engine writes the pending record of a payment outside the
// balance-mutating transaction, so that a crash mid-transfer still
// leaves an auditable row.
func (r *TransactionRepository) Create(ctx context.Context, q Queryer, txn *domain.Transaction) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO transactions (
			id, payer_account_id, merchant_account_id, amount,
			status, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txn.ID, txn.PayerAccountID, txn.MerchantAccountID, txn.Amount,
		txn.Status, txn.Description, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// UpdateStatus finalizes a pending transaction. The guard on the current
// status makes finalization one-shot: a record that is already approved
// or failed cannot be moved again.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, q Queryer, id uuid.UUID, status domain.TransactionStatus) error {
	res, err := q.ExecContext(ctx,
		`UPDATE transactions SET status = $1 WHERE id = $2 AND status = $3`,
		status, id, domain.TransactionStatusPending,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrInvalidTransition)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

// FindByAccount returns every transaction where the account appears as
// payer or merchant, most recent first. The result set is materialized
// in full; volume is bounded by the account's own history.
func (r *TransactionRepository) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE payer_account_id = $1 OR merchant_account_id = $1
		ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("FindByAccount: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("FindByAccount: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindByAccount: rows: %w", err)
	}
	return txns, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Scan(
		&t.ID, &t.PayerAccountID, &t.MerchantAccountID, &t.Amount,
		&t.Status, &t.Description, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
