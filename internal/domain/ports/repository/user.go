package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)

	// AcquireAccrualLock serializes ledger mutation per user for the
	// lifetime of the surrounding transaction. Callers must hold a
	// transactional handle.
	AcquireAccrualLock(ctx context.Context, tx Tx, userID string) error

	// ApplyAccrual credits one pass: balance and total_income grow by
	// payout, daily_income is overwritten with activeDailyIncome.
	ApplyAccrual(ctx context.Context, tx Tx, userID string, payout, activeDailyIncome decimal.Decimal) error

	// DebitBalance subtracts amount, failing with
	// domain.ErrInsufficientBalance rather than going negative.
	DebitBalance(ctx context.Context, tx Tx, userID string, amount decimal.Decimal) error

	CountUsers(ctx context.Context, tx Tx) (int, error)
	TotalBalance(ctx context.Context, tx Tx) (decimal.Decimal, error)

	// TotalDailyIncome sums the cached per-user active rates, giving
	// the platform-wide daily payout rate.
	TotalDailyIncome(ctx context.Context, tx Tx) (decimal.Decimal, error)
}
