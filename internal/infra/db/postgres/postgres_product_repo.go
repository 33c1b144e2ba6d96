package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pharmacy-invest-ledger/internal/domain"
	"pharmacy-invest-ledger/internal/domain/model"
	"pharmacy-invest-ledger/internal/domain/ports/repository"
)

// Ensure productRepo implements repository.ProductRepository
var _ repository.ProductRepository = (*productRepo)(nil)

type productRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *productRepo {
	return &productRepo{pool: pool}
}

func (r *productRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	const q = `
INSERT INTO products (id, name, price, daily_income, contract_days, pool, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  name=$2, price=$3, daily_income=$4, contract_days=$5, pool=$6;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.Price, p.DailyIncome, p.ContractDays, string(p.Pool), p.CreatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *productRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	const q = `
SELECT id, name, price, daily_income, contract_days, pool, created_at
  FROM products
 WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanProduct(row)
}

func (r *productRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Product, error) {
	const q = `
SELECT id, name, price, daily_income, contract_days, pool, created_at
  FROM products
 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanProduct(row rowScanner) (*model.Product, error) {
	p := &model.Product{}
	var pool string
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.DailyIncome, &p.ContractDays, &pool, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Pool = model.Pool(pool)
	return p, nil
}
