package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pharmacy-invest-ledger/internal/domain"
	"pharmacy-invest-ledger/internal/domain/model"
	"pharmacy-invest-ledger/internal/domain/ports/repository"
)

// Ensure orderRepo implements repository.OrderRepository
var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, user_id, product_id, daily_income, remaining_days, purchase_date, last_sync, status, created_at`

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (id, user_id, product_id, daily_income, remaining_days, purchase_date, last_sync, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  daily_income=$4, remaining_days=$5, last_sync=$7, status=$8;`

	_, err := execSQL(ctx, r.pool, tx, q,
		o.ID, o.UserID, o.ProductID, o.DailyIncome, o.RemainingDays,
		o.PurchaseDate, nullableTime(o.LastSync), string(o.Status), o.CreatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+orderColumns+` FROM orders WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Order, error) {
	const q = `
SELECT ` + orderColumns + `
  FROM orders
 WHERE user_id=$1
 ORDER BY created_at DESC;`
	return r.queryMany(ctx, tx, q, userID)
}

func (r *orderRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Order, error) {
	const q = `
SELECT ` + orderColumns + `
  FROM orders
 WHERE user_id=$1 AND status='active'
 ORDER BY created_at ASC;`
	return r.queryMany(ctx, tx, q, userID)
}

// ApplyAccrual commits one day's payout bookkeeping for one order. The
// last_sync predicate is the same-day guard: a pass that lost the race
// for this ledger day affects zero rows and reports the conflict so
// the surrounding transaction rolls back whole.
func (r *orderRepo) ApplyAccrual(ctx context.Context, tx repository.Tx, orderID string, remainingDays int, status model.OrderStatus, syncedAt, dayStart time.Time) error {
	const q = `
UPDATE orders
   SET remaining_days=$2, status=$3, last_sync=$4
 WHERE id=$1 AND status='active'
   AND (last_sync IS NULL OR last_sync < $5);`

	tag, err := execSQL(ctx, r.pool, tx, q, orderID, remainingDays, string(status), syncedAt, dayStart)
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

func (r *orderRepo) ListUserIDsDue(ctx context.Context, tx repository.Tx, dayStart time.Time, limit int) ([]string, error) {
	const q = `
SELECT DISTINCT user_id
  FROM orders
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

func (r *orderRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.OrderStatus]int, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT status, COUNT(*) FROM orders GROUP BY status;`)
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

func (r *orderRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) ([]*model.Order, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	o := &model.Order{}
	var status string
	var lastSync *time.Time
	if err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.DailyIncome, &o.RemainingDays, &o.PurchaseDate, &lastSync, &status, &o.CreatedAt); err != nil {
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

// nullableTime maps the zero value (never synced) to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
