// File: internal/infra/sched/sweep_worker.go
package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"pharmacy-invest-ledger/internal/domain"
	"pharmacy-invest-ledger/internal/domain/model"
	"pharmacy-invest-ledger/internal/domain/ports/repository"
	"pharmacy-invest-ledger/internal/infra/metrics"
	"pharmacy-invest-ledger/internal/infra/redis"
	"pharmacy-invest-ledger/internal/infra/worker"
	"pharmacy-invest-ledger/internal/usecase"
)

// AccrualRunner is the slice of the accrual use case the sweep needs.
type AccrualRunner interface {
	RunDaily(ctx context.Context, userID string, now time.Time) (*usecase.AccrualResult, error)
	RunWeekend(ctx context.Context, userID string, now time.Time) (*usecase.AccrualResult, error)
}

// SweepWorker runs the nightly payout over every user with orders due.
// The per-user passes stay best-effort and independent: one failing
// user is logged, counted and skipped, exactly as an opportunistic
// per-user trigger would behave.
type SweepWorker struct {
	spec          string
	accrual       AccrualRunner
	orders        repository.OrderRepository
	weekendOrders repository.WeekendOrderRepository
	locker        redis.Locker
	lockTTL       time.Duration
	workers       int
	batchSize     int
	loc           *time.Location
	log           *zerolog.Logger

	cron *cron.Cron
}

func NewSweepWorker(
	spec string,
	accrual AccrualRunner,
	orders repository.OrderRepository,
	weekendOrders repository.WeekendOrderRepository,
	locker redis.Locker,
	lockTTL time.Duration,
	workers, batchSize int,
	loc *time.Location,
	logger *zerolog.Logger,
) *SweepWorker {
	if loc == nil {
		loc = time.UTC
	}
	swLog := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{
		spec:          spec,
		accrual:       accrual,
		orders:        orders,
		weekendOrders: weekendOrders,
		locker:        locker,
		lockTTL:       lockTTL,
		workers:       workers,
		batchSize:     batchSize,
		loc:           loc,
		log:           &swLog,
	}
}

// Start schedules the sweep on the configured cron expression,
// evaluated in the ledger timezone so "past midnight" means past the
// ledger day boundary, not the host's.
func (w *SweepWorker) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(w.loc))
	_, err := c.AddFunc(w.spec, func() {
		w.RunOnce(ctx, time.Now())
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	w.cron = c
	c.Start()
	w.log.Info().Str("cron", w.spec).Str("tz", w.loc.String()).Msg("sweep scheduled")
	return nil
}

func (w *SweepWorker) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

// RunOnce sweeps both pools for the ledger day containing now.
func (w *SweepWorker) RunOnce(ctx context.Context, now time.Time) {
	w.sweepPool(ctx, model.PoolRegular, now)
	w.sweepPool(ctx, model.PoolWeekend, now)
}

func (w *SweepWorker) sweepPool(ctx context.Context, pool model.Pool, now time.Time) {
	dayStart := model.StartOfDay(now, w.loc)
	lockKey := fmt.Sprintf("ledger:sweep:%s:%s", pool, dayStart.Format("2006-01-02"))

	token, err := w.locker.TryLock(ctx, lockKey, w.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrSweepLocked) {
			w.log.Debug().Str("pool", string(pool)).Msg("sweep held elsewhere, skipping")
			return
		}
		w.log.Error().Err(err).Str("pool", string(pool)).Msg("sweep lock failed")
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, lockKey, token); err != nil {
			w.log.Warn().Err(err).Str("pool", string(pool)).Msg("sweep unlock failed")
		}
	}()

	start := time.Now()
	swept, failed := w.sweepUsers(ctx, pool, now, dayStart)
	metrics.ObserveSweepDuration(string(pool), time.Since(start).Seconds())

	w.log.Info().
		Str("pool", string(pool)).
		Time("day_start", dayStart).
		Int("users", swept).
		Int("failed", failed).
		Dur("took", time.Since(start)).
		Msg("sweep finished")
}

func (w *SweepWorker) sweepUsers(ctx context.Context, pool model.Pool, now, dayStart time.Time) (swept, failed int) {
	listDue := w.orders.ListUserIDsDue
	run := w.accrual.RunDaily
	if pool == model.PoolWeekend {
		listDue = w.weekendOrders.ListUserIDsDue
		run = w.accrual.RunWeekend
	}

	p := worker.NewPool(w.workers, w.log)
	p.Start(ctx)
	defer p.Stop()

	var mu sync.Mutex
	for {
		ids, err := listDue(ctx, repository.NoTX, dayStart, w.batchSize)
		if err != nil {
			w.log.Error().Err(err).Str("pool", string(pool)).Msg("list due users failed")
			return swept, failed
		}
		if len(ids) == 0 {
			return swept, failed
		}

		batchOK := 0
		var wg sync.WaitGroup
		for _, id := range ids {
			userID := id
			wg.Add(1)
			err := p.Submit(func(ctx context.Context) error {
				defer wg.Done()
				res, err := run(ctx, userID, now)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					metrics.IncSweepUser(string(pool), "failed")
					metrics.IncAccrualRun(string(pool), "failed")
					return err
				}
				swept++
				batchOK++
				metrics.IncSweepUser(string(pool), "ok")
				if res.Credited > 0 {
					metrics.IncAccrualRun(string(pool), "credited")
					metrics.AddAccrualPayout(string(pool), res.Payout.InexactFloat64())
					metrics.AddOrdersCompleted(string(pool), res.Completed)
				} else {
					metrics.IncAccrualRun(string(pool), "noop")
				}
				return nil
			})
			if err != nil {
				wg.Done()
				w.log.Error().Err(err).Msg("submit failed, aborting sweep")
				wg.Wait()
				return swept, failed
			}
		}
		wg.Wait()

		// Every successfully swept user drops out of the next due
		// query. A batch with zero successes would repeat forever, so
		// stop and leave the stragglers to the next scheduled run.
		if batchOK == 0 {
			return swept, failed
		}
		if len(ids) < w.batchSize {
			return swept, failed
		}
	}
}
