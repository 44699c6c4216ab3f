package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal digits every monetary value carries.
// Balances and amounts are stored as NUMERIC(15,2); values with more
// precision than this are rejected at construction rather than rounded.
const MoneyScale = 2

// Money is a fixed-point decimal amount. The zero value is 0.00.
type Money struct {
	value decimal.Decimal
}

// NewMoney parses a decimal literal such as "100.00" or "-5.5".
// Malformed literals and literals with more than MoneyScale fractional
// digits fail with ErrInvalidAmount.
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("NewMoney: %q: %w", s, ErrInvalidAmount)
	}
	if d.Exponent() < -MoneyScale {
		return Money{}, fmt.Errorf("NewMoney: %q exceeds scale %d: %w", s, MoneyScale, ErrInvalidAmount)
	}
	return Money{value: d}, nil
}

// NewMoneyFromMinorUnits builds a Money from integral minor units,
// e.g. 1050 -> 10.50.
func NewMoneyFromMinorUnits(units int64) Money {
	return Money{value: decimal.New(units, -MoneyScale)}
}

// MustMoney is NewMoney that panics on invalid input. Intended for
// constants and tests.
func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money { return Money{value: m.value.Add(o.value)} }
func (m Money) Sub(o Money) Money { return Money{value: m.value.Sub(o.value)} }

// Cmp returns -1, 0 or 1 as m is less than, equal to or greater than o.
func (m Money) Cmp(o Money) int { return m.value.Cmp(o.value) }

func (m Money) Equal(o Money) bool { return m.value.Equal(o.value) }

func (m Money) IsPositive() bool { return m.value.IsPositive() }
func (m Money) IsZero() bool     { return m.value.IsZero() }
func (m Money) IsNegative() bool { return m.value.IsNegative() }

// String renders the amount at fixed scale, e.g. "10.50".
func (m Money) String() string { return m.value.StringFixed(MoneyScale) }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}
	parsed, err := NewMoney(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer so Money binds as a NUMERIC parameter.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		m.value = decimal.NewFromInt(v)
		return nil
	case float64:
		m.value = decimal.NewFromFloat(v)
		return nil
	case nil:
		return fmt.Errorf("Money.Scan: cannot scan NULL")
	default:
		return fmt.Errorf("Money.Scan: unsupported type %T", src)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("Money.Scan: %w", err)
	}
	m.value = d
	return nil
}

// Credit returns balance + amount. The amount must be strictly positive.
func Credit(balance, amount Money) (Money, error) {
	if !amount.IsPositive() {
		return Money{}, fmt.Errorf("Credit: %w", ErrInvalidAmount)
	}
	return balance.Add(amount), nil
}

// Debit returns balance - amount. The amount must be strictly positive
// and must not exceed the balance; a balance can never go negative.
func Debit(balance, amount Money) (Money, error) {
	if !amount.IsPositive() {
		return Money{}, fmt.Errorf("Debit: %w", ErrInvalidAmount)
	}
	if balance.Cmp(amount) < 0 {
		return Money{}, fmt.Errorf("Debit: %w", ErrInsufficientBalance)
	}
	return balance.Sub(amount), nil
}
