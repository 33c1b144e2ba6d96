// File: internal/usecase/stats_uc.go
package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain/model"
	"pharmacy-invest-ledger/internal/domain/ports/repository"
)

// Stats is the admin-console snapshot of the ledger.
type Stats struct {
	Users                 int                       `json:"users"`
	OrdersByStatus        map[model.OrderStatus]int `json:"orders_by_status"`
	WeekendOrdersByStatus map[model.OrderStatus]int `json:"weekend_orders_by_status"`
	TotalBalance          decimal.Decimal           `json:"total_balance"`
	TotalWeekendBalance   decimal.Decimal           `json:"total_weekend_balance"`
	// TotalDailyIncome is the platform-wide payout rate: the sum of
	// every user's cached active daily income.
	TotalDailyIncome decimal.Decimal `json:"total_daily_income"`
}

type StatsUseCase struct {
	users         repository.UserRepository
	orders        repository.OrderRepository
	weekendOrders repository.WeekendOrderRepository
}

func NewStatsUseCase(users repository.UserRepository, orders repository.OrderRepository, weekendOrders repository.WeekendOrderRepository) *StatsUseCase {
	return &StatsUseCase{users: users, orders: orders, weekendOrders: weekendOrders}
}

func (uc *StatsUseCase) Collect(ctx context.Context) (*Stats, error) {
	users, err := uc.users.CountUsers(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	orders, err := uc.orders.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	weekendOrders, err := uc.weekendOrders.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	balance, err := uc.users.TotalBalance(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	weekendBalance, err := uc.weekendOrders.TotalWeekendBalance(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	dailyIncome, err := uc.users.TotalDailyIncome(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Users:                 users,
		OrdersByStatus:        orders,
		WeekendOrdersByStatus: weekendOrders,
		TotalBalance:          balance,
		TotalWeekendBalance:   weekendBalance,
		TotalDailyIncome:      dailyIncome,
	}, nil
}
