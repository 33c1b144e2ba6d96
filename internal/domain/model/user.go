package model

import (
	"time"

	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain"
)

// User carries the ledger fields the accrual pass mutates. Balance and
// TotalIncome are additive-only from this service's point of view;
// DailyIncome is a cached aggregate, overwritten on every paying pass
// with the sum of daily income over the user's still-active orders.
type User struct {
	ID          string // ULID
	Phone       string
	Balance     decimal.Decimal
	TotalIncome decimal.Decimal
	DailyIncome decimal.Decimal
	CreatedAt   time.Time
}

func NewUser(id, phone string) (*User, error) {
	if id == "" || phone == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:          id,
		Phone:       phone,
		Balance:     decimal.Zero,
		TotalIncome: decimal.Zero,
		DailyIncome: decimal.Zero,
		CreatedAt:   time.Now(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
