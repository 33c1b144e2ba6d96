//go:build !integration

package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain"
	"pharmacy-invest-ledger/internal/domain/model"
)

func mustProduct(t *testing.T, pool model.Pool) *model.Product {
	t.Helper()
	p, err := model.NewProduct("prod-1", "Vitamin Pack", decimal.NewFromInt(100), decimal.NewFromInt(4), 30, pool)
	if err != nil {
		t.Fatalf("build product: %v", err)
	}
	return p
}

func TestOrder_EligibleForPayout(t *testing.T) {
	dayStart := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	yesterday := dayStart.Add(-10 * time.Hour)

	base := model.Order{
		ID:            "ord-1",
		UserID:        "user-1",
		DailyIncome:   decimal.NewFromInt(4),
		RemainingDays: 5,
		PurchaseDate:  yesterday,
		Status:        model.OrderStatusActive,
	}

	t.Run("a never-synced order from yesterday is due", func(t *testing.T) {
		o := base
		if !o.EligibleForPayout(dayStart) {
			t.Error("expected eligible")
		}
	})

	t.Run("an order bought today is not due", func(t *testing.T) {
		o := base
		o.PurchaseDate = dayStart.Add(3 * time.Hour)
		if o.EligibleForPayout(dayStart) {
			t.Error("expected ineligible on purchase day")
		}
	})

	t.Run("an order bought exactly at midnight waits a day", func(t *testing.T) {
		o := base
		o.PurchaseDate = dayStart
		if o.EligibleForPayout(dayStart) {
			t.Error("expected ineligible when purchased at the boundary")
		}
	})

	t.Run("an order synced today is already paid", func(t *testing.T) {
		o := base
		o.LastSync = dayStart.Add(time.Hour)
		if o.EligibleForPayout(dayStart) {
			t.Error("expected ineligible after today's sync")
		}
	})

	t.Run("an order synced yesterday is due again", func(t *testing.T) {
		o := base
		o.LastSync = dayStart.Add(-2 * time.Hour)
		if !o.EligibleForPayout(dayStart) {
			t.Error("expected eligible on the next day")
		}
	})

	t.Run("a completed order never accrues", func(t *testing.T) {
		o := base
		o.Status = model.OrderStatusCompleted
		o.RemainingDays = 0
		if o.EligibleForPayout(dayStart) {
			t.Error("expected ineligible when completed")
		}
	})

	t.Run("zero remaining days blocks accrual even while active", func(t *testing.T) {
		o := base
		o.RemainingDays = 0
		if o.EligibleForPayout(dayStart) {
			t.Error("expected ineligible at zero remaining days")
		}
	})
}

func TestNewOrder(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	t.Run("copies the contract terms from the product", func(t *testing.T) {
		p := mustProduct(t, model.PoolRegular)
		o, err := model.NewOrder("ord-1", "user-1", p, now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if o.RemainingDays != p.ContractDays {
			t.Errorf("expected %d remaining days, got %d", p.ContractDays, o.RemainingDays)
		}
		if !o.DailyIncome.Equal(p.DailyIncome) {
			t.Errorf("expected daily income %s, got %s", p.DailyIncome, o.DailyIncome)
		}
		if !o.LastSync.IsZero() {
			t.Error("expected no sync stamp on a fresh order")
		}
		if o.Status != model.OrderStatusActive {
			t.Errorf("expected an active order, got %s", o.Status)
		}
	})

	t.Run("rejects missing identifiers", func(t *testing.T) {
		p := mustProduct(t, model.PoolRegular)
		if _, err := model.NewOrder("", "user-1", p, now); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for empty id, got %v", err)
		}
		if _, err := model.NewOrder("ord-1", "", p, now); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for empty user, got %v", err)
		}
		if _, err := model.NewOrder("ord-1", "user-1", nil, now); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for nil product, got %v", err)
		}
	})

	t.Run("weekend orders start with a zero balance", func(t *testing.T) {
		p := mustProduct(t, model.PoolWeekend)
		o, err := model.NewWeekendOrder("wknd-1", "user-1", p, now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !o.WeekendBalance.IsZero() {
			t.Errorf("expected zero weekend balance, got %s", o.WeekendBalance)
		}
	})
}

func TestNewProduct(t *testing.T) {
	price := decimal.NewFromInt(100)
	income := decimal.NewFromInt(4)

	cases := []struct {
		name string
		fn   func() (*model.Product, error)
		ok   bool
	}{
		{"valid regular", func() (*model.Product, error) {
			return model.NewProduct("p1", "A", price, income, 30, model.PoolRegular)
		}, true},
		{"valid weekend", func() (*model.Product, error) {
			return model.NewProduct("p2", "B", price, income, 7, model.PoolWeekend)
		}, true},
		{"empty name", func() (*model.Product, error) {
			return model.NewProduct("p3", "", price, income, 30, model.PoolRegular)
		}, false},
		{"negative price", func() (*model.Product, error) {
			return model.NewProduct("p4", "C", decimal.NewFromInt(-1), income, 30, model.PoolRegular)
		}, false},
		{"zero contract days", func() (*model.Product, error) {
			return model.NewProduct("p5", "D", price, income, 0, model.PoolRegular)
		}, false},
		{"unknown pool", func() (*model.Product, error) {
			return model.NewProduct("p6", "E", price, income, 30, model.Pool("monthly"))
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.fn()
			if tc.ok && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if !tc.ok && !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestStartOfDay(t *testing.T) {
	t.Run("truncates to midnight UTC", func(t *testing.T) {
		in := time.Date(2026, 8, 28, 23, 59, 59, 0, time.UTC)
		want := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
		if got := model.StartOfDay(in, time.UTC); !got.Equal(want) {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("respects the ledger zone, not the instant's zone", func(t *testing.T) {
		tehran, err := time.LoadLocation("Asia/Tehran")
		if err != nil {
			t.Skip("tzdata unavailable")
		}
		// 21:00 UTC is already the next day in Tehran (UTC+3:30).
		in := time.Date(2026, 8, 27, 21, 0, 0, 0, time.UTC)
		got := model.StartOfDay(in, tehran)
		want := time.Date(2026, 8, 28, 0, 0, 0, 0, tehran)
		if !got.Equal(want) {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("nil location falls back to UTC", func(t *testing.T) {
		in := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
		want := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
		if got := model.StartOfDay(in, nil); !got.Equal(want) {
			t.Errorf("expected %s, got %s", want, got)
		}
	})
}
