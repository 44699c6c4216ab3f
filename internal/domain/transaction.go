package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusApproved TransactionStatus = "approved"
	TransactionStatusFailed   TransactionStatus = "failed"
)

// Transaction is one row of the audit trail. A transaction is created
// pending, finalized exactly once to approved or failed, and never
// touched again. A deposit is recorded with payer = merchant = the
// credited account.
type Transaction struct {
	ID                uuid.UUID
	PayerAccountID    uuid.UUID
	MerchantAccountID uuid.UUID
	Amount            Money
	Status            TransactionStatus
	Description       *string
	CreatedAt         time.Time
}
