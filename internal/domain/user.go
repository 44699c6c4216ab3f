package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient   Role = "client"
	RoleMerchant Role = "merchant"
)

func (r Role) IsValid() bool {
	return r == RoleClient || r == RoleMerchant
}

type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
