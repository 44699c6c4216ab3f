package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account holds a party's balance. The balance is never set directly;
// the ledger engine derives new balances through Credit and Debit and
// persists them with a version check.
type Account struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   Money
	Version   int64
	CreatedAt time.Time
}
