package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain"
	"pharmacy-invest-ledger/internal/domain/model"
	"pharmacy-invest-ledger/internal/domain/ports/repository"
)

// Ensure weekendOrderRepo implements repository.WeekendOrderRepository
var _ repository.WeekendOrderRepository = (*weekendOrderRepo)(nil)

type weekendOrderRepo struct {
	pool *pgxpool.Pool
}

func NewWeekendOrderRepo(pool *pgxpool.Pool) *weekendOrderRepo {
	return &weekendOrderRepo{pool: pool}
}

const weekendOrderColumns = `id, user_id, product_id, daily_income, remaining_days, purchase_date, last_sync, status, weekend_balance, created_at`

func (r *weekendOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.WeekendOrder) error {
	const q = `
INSERT INTO weekend_orders (id, user_id, product_id, daily_income, remaining_days, purchase_date, last_sync, status, weekend_balance, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  daily_income=$4, remaining_days=$5, last_sync=$7, status=$8, weekend_balance=$9;`

	_, err := execSQL(ctx, r.pool, tx, q,
		o.ID, o.UserID, o.ProductID, o.DailyIncome, o.RemainingDays,
		o.PurchaseDate, nullableTime(o.LastSync), string(o.Status), o.WeekendBalance, o.CreatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *weekendOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.WeekendOrder, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+weekendOrderColumns+` FROM weekend_orders WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanWeekendOrder(row)
}

func (r *weekendOrderRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.WeekendOrder, error) {
	const q = `
SELECT ` + weekendOrderColumns + `
  FROM weekend_orders
 WHERE user_id=$1
 ORDER BY created_at DESC;`
	return r.queryMany(ctx, tx, q, userID)
}

func (r *weekendOrderRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.WeekendOrder, error) {
	const q = `
SELECT ` + weekendOrderColumns + `
  FROM weekend_orders
 WHERE user_id=$1 AND status='active'
 ORDER BY created_at ASC;`
	return r.queryMany(ctx, tx, q, userID)
}

// ApplyAccrual is the weekend-pool commit: the payout lands on the
// order's own running balance, under the same same-day guard as the
// regular pool. No user-level write belongs here.
func (r *weekendOrderRepo) ApplyAccrual(ctx context.Context, tx repository.Tx, orderID string, payout decimal.Decimal, remainingDays int, status model.OrderStatus, syncedAt, dayStart time.Time) error {
	const q = `
UPDATE weekend_orders
   SET weekend_balance = weekend_balance + $2,
       remaining_days=$3, status=$4, last_sync=$5
 WHERE id=$1 AND status='active'
   AND (last_sync IS NULL OR last_sync < $6);`

	tag, err := execSQL(ctx, r.pool, tx, q, orderID, payout, remainingDays, string(status), syncedAt, dayStart)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccrualConflict
	}
	return nil
}

func (r *weekendOrderRepo) ListUserIDsDue(ctx context.Context, tx repository.Tx, dayStart time.Time, limit int) ([]string, error) {
	const q = `
SELECT DISTINCT user_id
  FROM weekend_orders
 WHERE status='active'
   AND remaining_days > 0
   AND purchase_date < $1
   AND (last_sync IS NULL OR last_sync < $1)
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, dayStart, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return ids, nil
}

func (r *weekendOrderRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.OrderStatus]int, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT status, COUNT(*) FROM weekend_orders GROUP BY status;`)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	counts := make(map[model.OrderStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.OrderStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

func (r *weekendOrderRepo) TotalWeekendBalance(ctx context.Context, tx repository.Tx) (decimal.Decimal, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COALESCE(SUM(weekend_balance),0) FROM weekend_orders;`)
	if err != nil {
		return decimal.Zero, err
	}
	var total decimal.Decimal
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, domain.ErrReadDatabaseRow
	}
	return total, nil
}

func (r *weekendOrderRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) ([]*model.WeekendOrder, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.WeekendOrder
	for rows.Next() {
		o, err := scanWeekendOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanWeekendOrder(row rowScanner) (*model.WeekendOrder, error) {
	o := &model.WeekendOrder{}
	var status string
	var lastSync *time.Time
	if err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.DailyIncome, &o.RemainingDays, &o.PurchaseDate, &lastSync, &status, &o.WeekendBalance, &o.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if lastSync != nil {
		o.LastSync = *lastSync
	}
	o.Status = model.OrderStatus(status)
	return o, nil
}
