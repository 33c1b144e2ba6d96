package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain/model"
)

// OrderRepository is the store for the regular order pool.
type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	FindByUser(ctx context.Context, tx Tx, userID string) ([]*model.Order, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) ([]*model.Order, error)

	// ApplyAccrual persists the result of one payout for one order:
	// new remaining days, possibly the completed status, and the sync
	// stamp. The write is guarded by last_sync < dayStart and returns
	// domain.ErrAccrualConflict when the guard misses.
	ApplyAccrual(ctx context.Context, tx Tx, orderID string, remainingDays int, status model.OrderStatus, syncedAt, dayStart time.Time) error

	// ListUserIDsDue returns ids of users holding at least one active
	// order not yet credited for the day starting at dayStart.
	ListUserIDsDue(ctx context.Context, tx Tx, dayStart time.Time, limit int) ([]string, error)

	CountByStatus(ctx context.Context, tx Tx) (map[model.OrderStatus]int, error)
}

// WeekendOrderRepository is the store for the weekend order pool.
// Structurally the regular store plus the per-order weekend balance.
type WeekendOrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.WeekendOrder) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.WeekendOrder, error)
	FindByUser(ctx context.Context, tx Tx, userID string) ([]*model.WeekendOrder, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) ([]*model.WeekendOrder, error)

	// ApplyAccrual additionally credits payout into the order's own
	// weekend_balance. Same last_sync guard as the regular store.
	ApplyAccrual(ctx context.Context, tx Tx, orderID string, payout decimal.Decimal, remainingDays int, status model.OrderStatus, syncedAt, dayStart time.Time) error

	ListUserIDsDue(ctx context.Context, tx Tx, dayStart time.Time, limit int) ([]string, error)

	CountByStatus(ctx context.Context, tx Tx) (map[model.OrderStatus]int, error)
	TotalWeekendBalance(ctx context.Context, tx Tx) (decimal.Decimal, error)
}
