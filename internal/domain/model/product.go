package model

import (
	"time"

	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain"
)

// Product is a catalog entry users can buy into. Only the fields the
// ledger needs are modeled; presentation data stays in the admin app.
type Product struct {
	ID           string // ULID
	Name         string
	Price        decimal.Decimal
	DailyIncome  decimal.Decimal
	ContractDays int
	Pool         Pool
	CreatedAt    time.Time
}

func NewProduct(id, name string, price, dailyIncome decimal.Decimal, contractDays int, pool Pool) (*Product, error) {
	if id == "" || name == "" {
		return nil, domain.ErrInvalidArgument
	}
	if price.IsNegative() || dailyIncome.IsNegative() || contractDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if pool != PoolRegular && pool != PoolWeekend {
		return nil, domain.ErrInvalidArgument
	}
	return &Product{
		ID:           id,
		Name:         name,
		Price:        price,
		DailyIncome:  dailyIncome,
		ContractDays: contractDays,
		Pool:         pool,
		CreatedAt:    time.Now(),
	}, nil
}
