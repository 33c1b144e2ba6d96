package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain"
	"pharmacy-invest-ledger/internal/domain/model"
	"pharmacy-invest-ledger/internal/domain/ports/repository"
)

// Ensure userRepo implements repository.UserRepository
var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, phone, balance, total_income, daily_income, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  phone=$2, balance=$3, total_income=$4, daily_income=$5;`

	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Phone, u.Balance, u.TotalIncome, u.DailyIncome, u.CreatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `
SELECT id, phone, balance, total_income, daily_income, created_at
  FROM users
 WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Phone, &u.Balance, &u.TotalIncome, &u.DailyIncome, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

// AcquireAccrualLock takes a transaction-scoped advisory lock on the
// user, serializing every ledger mutation (accrual, purchase) per
// user. Only valid on a transactional handle: the lock must die with
// the transaction, never with the pool connection.
func (r *userRepo) AcquireAccrualLock(ctx context.Context, tx repository.Tx, userID string) error {
	if _, ok := tx.(pgx.Tx); !ok {
		return domain.ErrInvalidExecContext
	}
	_, err := execSQL(ctx, r.pool, tx, `SELECT pg_advisory_xact_lock($1)`, hashToInt64(userID))
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) ApplyAccrual(ctx context.Context, tx repository.Tx, userID string, payout, activeDailyIncome decimal.Decimal) error {
	const q = `
UPDATE users
   SET balance      = balance + $2,
       total_income = total_income + $2,
       daily_income = $3
 WHERE id = $1;`

	tag, err := execSQL(ctx, r.pool, tx, q, userID, payout, activeDailyIncome)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepo) DebitBalance(ctx context.Context, tx repository.Tx, userID string, amount decimal.Decimal) error {
	const q = `
UPDATE users
   SET balance = balance - $2
 WHERE id = $1 AND balance >= $2;`

	tag, err := execSQL(ctx, r.pool, tx, q, userID, amount)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Guard missed: tell a missing user apart from a short balance.
	if _, err := r.FindByID(ctx, tx, userID); err != nil {
		return err
	}
	return domain.ErrInsufficientBalance
}

func (r *userRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM users;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *userRepo) TotalBalance(ctx context.Context, tx repository.Tx) (decimal.Decimal, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COALESCE(SUM(balance),0) FROM users;`)
	if err != nil {
		return decimal.Zero, err
	}
	var total decimal.Decimal
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, domain.ErrReadDatabaseRow
	}
	return total, nil
}

func (r *userRepo) TotalDailyIncome(ctx context.Context, tx repository.Tx) (decimal.Decimal, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COALESCE(SUM(daily_income),0) FROM users;`)
	if err != nil {
		return decimal.Zero, err
	}
	var total decimal.Decimal
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, domain.ErrReadDatabaseRow
	}
	return total, nil
}
