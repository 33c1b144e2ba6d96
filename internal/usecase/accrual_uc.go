// File: internal/usecase/accrual_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain"
	"pharmacy-invest-ledger/internal/domain/model"
	"pharmacy-invest-ledger/internal/domain/ports/repository"
)

// AccrualResult summarizes one payout pass for one user and one pool.
type AccrualResult struct {
	Pool      model.Pool
	Payout    decimal.Decimal
	Credited  int
	Completed int
	// ActiveDailyIncome is the post-pass sum of daily income over the
	// user's still-active regular orders. Zero for the weekend pool,
	// which keeps no user-level aggregate.
	ActiveDailyIncome decimal.Decimal
}

// AccrualUseCase runs the daily payout pass over a user's orders.
//
// Both pools share one control flow; they differ only in where the
// payout lands (user ledger vs per-order weekend balance) and in
// whether the active-rate aggregate is maintained. The whole pass -
// read, decide, write - happens inside a single transaction holding a
// per-user advisory lock, so concurrent invocations for the same user
// serialize instead of double-crediting.
type AccrualUseCase struct {
	orders        repository.OrderRepository
	weekendOrders repository.WeekendOrderRepository
	users         repository.UserRepository
	tm            repository.TransactionManager
	loc           *time.Location
	log           *zerolog.Logger
}

func NewAccrualUseCase(
	orders repository.OrderRepository,
	weekendOrders repository.WeekendOrderRepository,
	users repository.UserRepository,
	tm repository.TransactionManager,
	loc *time.Location,
	logger *zerolog.Logger,
) *AccrualUseCase {
	if loc == nil {
		loc = time.UTC
	}
	ucLog := logger.With().Str("component", "AccrualUseCase").Logger()
	return &AccrualUseCase{
		orders:        orders,
		weekendOrders: weekendOrders,
		users:         users,
		tm:            tm,
		loc:           loc,
		log:           &ucLog,
	}
}

// RunDaily performs at most one regular-pool payout pass for the user.
// now is explicit so callers (and tests) control the ledger day.
func (uc *AccrualUseCase) RunDaily(ctx context.Context, userID string, now time.Time) (*AccrualResult, error) {
	return uc.run(ctx, model.PoolRegular, userID, now)
}

// RunWeekend performs at most one weekend-pool payout pass for the user.
func (uc *AccrualUseCase) RunWeekend(ctx context.Context, userID string, now time.Time) (*AccrualResult, error) {
	return uc.run(ctx, model.PoolWeekend, userID, now)
}

func (uc *AccrualUseCase) run(ctx context.Context, pool model.Pool, userID string, now time.Time) (*AccrualResult, error) {
	res := &AccrualResult{Pool: pool, Payout: decimal.Zero, ActiveDailyIncome: decimal.Zero}

	// A missing user id is a silent no-op, not an error.
	if strings.TrimSpace(userID) == "" {
		return res, nil
	}

	dayStart := model.StartOfDay(now, uc.loc)

	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.users.AcquireAccrualLock(ctx, tx, userID); err != nil {
			return err
		}
		if pool == model.PoolWeekend {
			return uc.passWeekend(ctx, tx, userID, now, dayStart, res)
		}
		return uc.passRegular(ctx, tx, userID, now, dayStart, res)
	})
	if err != nil {
		uc.log.Error().Err(err).
			Str("pool", string(pool)).
			Str("user_id", userID).
			Time("day_start", dayStart).
			Msg("accrual pass failed")
		return nil, err
	}

	if res.Credited > 0 {
		uc.log.Info().
			Str("pool", string(pool)).
			Str("user_id", userID).
			Int("credited", res.Credited).
			Int("completed", res.Completed).
			Str("payout", res.Payout.String()).
			Msg("accrual pass committed")
	}
	return res, nil
}

// orderDelta is the planned write for one credited order.
type orderDelta struct {
	id            string
	payout        decimal.Decimal
	remainingDays int
	status        model.OrderStatus
}

// passRegular credits eligible regular orders into the user ledger.
func (uc *AccrualUseCase) passRegular(ctx context.Context, tx repository.Tx, userID string, now, dayStart time.Time, res *AccrualResult) error {
	orders, err := uc.orders.FindActiveByUser(ctx, tx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	deltas, payout, activeRate := planPass(orders, dayStart)
	res.ActiveDailyIncome = activeRate
	if len(deltas) == 0 {
		// Idempotence short-circuit: nothing eligible, write nothing.
		return nil
	}

	for _, d := range deltas {
		if err := uc.orders.ApplyAccrual(ctx, tx, d.id, d.remainingDays, d.status, now, dayStart); err != nil {
			return err
		}
		if d.status == model.OrderStatusCompleted {
			res.Completed++
		}
	}
	if err := uc.users.ApplyAccrual(ctx, tx, userID, payout, activeRate); err != nil {
		return err
	}

	res.Payout = payout
	res.Credited = len(deltas)
	return nil
}

// passWeekend credits eligible weekend orders into their own balances.
// No user-level write of any kind.
func (uc *AccrualUseCase) passWeekend(ctx context.Context, tx repository.Tx, userID string, now, dayStart time.Time, res *AccrualResult) error {
	weekendOrders, err := uc.weekendOrders.FindActiveByUser(ctx, tx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	orders := make([]*model.Order, len(weekendOrders))
	for i := range weekendOrders {
		orders[i] = &weekendOrders[i].Order
	}
	deltas, payout, _ := planPass(orders, dayStart)
	res.ActiveDailyIncome = decimal.Zero
	if len(deltas) == 0 {
		return nil
	}

	for _, d := range deltas {
		if err := uc.weekendOrders.ApplyAccrual(ctx, tx, d.id, d.payout, d.remainingDays, d.status, now, dayStart); err != nil {
			return err
		}
		if d.status == model.OrderStatusCompleted {
			res.Completed++
		}
	}

	res.Payout = payout
	res.Credited = len(deltas)
	return nil
}

// planPass decides, per order, whether today's payout applies, and
// accumulates the total payout plus the post-pass active rate. Orders
// completing in this pass are excluded from the active rate; untouched
// but still-active orders are included.
func planPass(orders []*model.Order, dayStart time.Time) ([]orderDelta, decimal.Decimal, decimal.Decimal) {
	var deltas []orderDelta
	payout := decimal.Zero
	activeRate := decimal.Zero

	for _, o := range orders {
		if !o.EligibleForPayout(dayStart) {
			activeRate = activeRate.Add(o.DailyIncome)
			continue
		}

		payout = payout.Add(o.DailyIncome)
		remaining := o.RemainingDays - 1
		status := model.OrderStatusActive
		if remaining <= 0 {
			remaining = 0
			status = model.OrderStatusCompleted
		} else {
			activeRate = activeRate.Add(o.DailyIncome)
		}
		deltas = append(deltas, orderDelta{
			id:            o.ID,
			payout:        o.DailyIncome,
			remainingDays: remaining,
			status:        status,
		})
	}
	return deltas, payout, activeRate
}
