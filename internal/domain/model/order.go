package model

import (
	"time"

	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain"
)

type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusCompleted OrderStatus = "completed"
)

// Pool names the two disjoint order collections. Regular orders pay
// into the user ledger; weekend orders pay into their own balance.
type Pool string

const (
	PoolRegular Pool = "regular"
	PoolWeekend Pool = "weekend"
)

// Order is one product purchase by one user. It is mutated only by the
// daily accrual pass until RemainingDays reaches zero, after which the
// record is frozen with Status = completed.
type Order struct {
	ID            string // ULID
	UserID        string // ULID of user
	ProductID     string // ULID of product
	DailyIncome   decimal.Decimal
	RemainingDays int
	PurchaseDate  time.Time
	LastSync      time.Time // zero value means never credited
	Status        OrderStatus
	CreatedAt     time.Time
}

// NewOrder creates an active order for a product purchased now.
// LastSync is left at the zero value so the first eligible day pays out.
func NewOrder(id, userID string, product *Product, now time.Time) (*Order, error) {
	if id == "" || userID == "" || product == nil {
		return nil, domain.ErrInvalidArgument
	}
	if product.ContractDays <= 0 || product.DailyIncome.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	return &Order{
		ID:            id,
		UserID:        userID,
		ProductID:     product.ID,
		DailyIncome:   product.DailyIncome,
		RemainingDays: product.ContractDays,
		PurchaseDate:  now,
		Status:        OrderStatusActive,
		CreatedAt:     now,
	}, nil
}

// EligibleForPayout reports whether the order may be credited for the
// ledger day starting at dayStart. All three conditions are necessary:
// orders never accrue on their purchase day, completed countdowns never
// accrue, and LastSync >= dayStart means this day is already paid.
func (o *Order) EligibleForPayout(dayStart time.Time) bool {
	if o.Status != OrderStatusActive || o.RemainingDays <= 0 {
		return false
	}
	return o.PurchaseDate.Before(dayStart) && o.LastSync.Before(dayStart)
}

// WeekendOrder is an order in the weekend pool. Payouts accumulate in
// WeekendBalance on the order itself; the user ledger is never touched.
type WeekendOrder struct {
	Order
	WeekendBalance decimal.Decimal
}

func NewWeekendOrder(id, userID string, product *Product, now time.Time) (*WeekendOrder, error) {
	o, err := NewOrder(id, userID, product, now)
	if err != nil {
		return nil, err
	}
	return &WeekendOrder{Order: *o, WeekendBalance: decimal.Zero}, nil
}

// StartOfDay returns midnight of t's calendar day in loc. Every
// eligibility comparison in the accrual pass uses this boundary.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
