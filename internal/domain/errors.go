package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidAmount          = errors.New("amount must be a valid positive decimal")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrNotMerchant            = errors.New("target account does not belong to a merchant")
	ErrSelfPayment            = errors.New("account cannot pay itself")
	ErrConcurrentModification = errors.New("account was modified concurrently, please retry")
	ErrInvalidTransition      = errors.New("transaction is not pending")
	ErrPaymentFailed          = errors.New("payment failed")
	ErrEmailTaken             = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid email or password")
)
