package repository

import (
	"context"

	"pharmacy-invest-ledger/internal/domain/model"
)

type ProductRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Product) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Product, error)
	List(ctx context.Context, tx Tx) ([]*model.Product, error)
}
