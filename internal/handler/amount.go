package handler

import "github.com/gatewaylabs/payment-gateway/internal/domain"

// AmountBounds is the boundary validation on monetary input: presence,
// well-formedness, and configured minimum/maximum. The ledger engine
// still enforces positivity on its own.
type AmountBounds struct {
	Min domain.Money
	Max domain.Money
}

func (b AmountBounds) ParseAmount(raw string) (domain.Money, []FieldError) {
	if raw == "" {
		return domain.Money{}, []FieldError{{Field: "amount", Message: "required"}}
	}

	amount, err := domain.NewMoney(raw)
	if err != nil {
		return domain.Money{}, []FieldError{{Field: "amount", Message: "must be a decimal with at most two fractional digits"}}
	}

	if amount.Cmp(b.Min) < 0 {
		return domain.Money{}, []FieldError{{Field: "amount", Message: "below minimum of " + b.Min.String()}}
	}
	if amount.Cmp(b.Max) > 0 {
		return domain.Money{}, []FieldError{{Field: "amount", Message: "above maximum of " + b.Max.String()}}
	}

	return amount, nil
}
