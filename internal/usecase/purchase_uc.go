// File: internal/usecase/purchase_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain"
	"pharmacy-invest-ledger/internal/domain/model"
	"pharmacy-invest-ledger/internal/domain/ports/repository"
)

// PurchaseUseCase owns the flow that brings orders into existence:
// debit the product price from the user's balance and insert the order,
// atomically. A fresh order starts with LastSync unset so it earns its
// first payout the day after purchase, never on purchase day.
type PurchaseUseCase struct {
	orders        repository.OrderRepository
	weekendOrders repository.WeekendOrderRepository
	users         repository.UserRepository
	products      repository.ProductRepository
	tm            repository.TransactionManager
	log           *zerolog.Logger
}

func NewPurchaseUseCase(
	orders repository.OrderRepository,
	weekendOrders repository.WeekendOrderRepository,
	users repository.UserRepository,
	products repository.ProductRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *PurchaseUseCase {
	ucLog := logger.With().Str("component", "PurchaseUseCase").Logger()
	return &PurchaseUseCase{
		orders:        orders,
		weekendOrders: weekendOrders,
		users:         users,
		products:      products,
		tm:            tm,
		log:           &ucLog,
	}
}

// RegisterUser creates a user with a zero ledger.
func (uc *PurchaseUseCase) RegisterUser(ctx context.Context, phone string) (*model.User, error) {
	u, err := model.NewUser(ulid.Make().String(), phone)
	if err != nil {
		return nil, err
	}
	if err := uc.users.Save(ctx, repository.NoTX, u); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateProduct adds a catalog entry. Admin-only at the HTTP layer.
func (uc *PurchaseUseCase) CreateProduct(ctx context.Context, name string, price, dailyIncome decimal.Decimal, contractDays int, pool model.Pool) (*model.Product, error) {
	p, err := model.NewProduct(ulid.Make().String(), name, price, dailyIncome, contractDays, pool)
	if err != nil {
		return nil, err
	}
	if err := uc.products.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts returns the purchase catalog.
func (uc *PurchaseUseCase) ListProducts(ctx context.Context) ([]*model.Product, error) {
	return uc.products.List(ctx, repository.NoTX)
}

// Purchase debits the product price and creates the order in the
// product's pool. Fails with domain.ErrInsufficientBalance without
// touching anything when the user cannot afford the product.
func (uc *PurchaseUseCase) Purchase(ctx context.Context, userID, productID string, now time.Time) (string, error) {
	if userID == "" || productID == "" {
		return "", domain.ErrInvalidArgument
	}

	product, err := uc.products.FindByID(ctx, repository.NoTX, productID)
	if err != nil {
		return "", err
	}

	orderID := ulid.Make().String()
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Same per-user lock as the accrual pass, so a purchase can
		// never interleave with a payout commit for this user.
		if err := uc.users.AcquireAccrualLock(ctx, tx, userID); err != nil {
			return err
		}
		if err := uc.users.DebitBalance(ctx, tx, userID, product.Price); err != nil {
			return err
		}

		if product.Pool == model.PoolWeekend {
			o, err := model.NewWeekendOrder(orderID, userID, product, now)
			if err != nil {
				return err
			}
			return uc.weekendOrders.Save(ctx, tx, o)
		}
		o, err := model.NewOrder(orderID, userID, product, now)
		if err != nil {
			return err
		}
		return uc.orders.Save(ctx, tx, o)
	})
	if err != nil {
		return "", err
	}

	uc.log.Info().
		Str("user_id", userID).
		Str("product_id", productID).
		Str("order_id", orderID).
		Str("pool", string(product.Pool)).
		Msg("order created")
	return orderID, nil
}

// OrdersByUser lists a user's orders in one pool for the portal views.
func (uc *PurchaseUseCase) OrdersByUser(ctx context.Context, userID string, pool model.Pool) ([]*model.Order, error) {
	if pool == model.PoolWeekend {
		weekendOrders, err := uc.weekendOrders.FindByUser(ctx, repository.NoTX, userID)
		if err != nil {
			return nil, err
		}
		out := make([]*model.Order, len(weekendOrders))
		for i := range weekendOrders {
			out[i] = &weekendOrders[i].Order
		}
		return out, nil
	}
	return uc.orders.FindByUser(ctx, repository.NoTX, userID)
}

// Balance returns the user's ledger snapshot.
func (uc *PurchaseUseCase) Balance(ctx context.Context, userID string) (*model.User, error) {
	return uc.users.FindByID(ctx, repository.NoTX, userID)
}
