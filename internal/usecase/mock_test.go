//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain"
	"pharmacy-invest-ledger/internal/domain/model"
	"pharmacy-invest-ledger/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the callback immediately with NoTX unless a test installs
// its own WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu    sync.Mutex
	store map[string]*model.User

	SaveFunc               func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByIDFunc           func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	AcquireAccrualLockFunc func(ctx context.Context, tx repository.Tx, userID string) error
	ApplyAccrualFunc       func(ctx context.Context, tx repository.Tx, userID string, payout, activeDailyIncome decimal.Decimal) error
	DebitBalanceFunc       func(ctx context.Context, tx repository.Tx, userID string, amount decimal.Decimal) error

	Locked []string // every user id AcquireAccrualLock saw, in order
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{store: make(map[string]*model.User)}
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[u.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) AcquireAccrualLock(ctx context.Context, tx repository.Tx, userID string) error {
	if m.AcquireAccrualLockFunc != nil {
		return m.AcquireAccrualLockFunc(ctx, tx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Locked = append(m.Locked, userID)
	return nil
}

func (m *MockUserRepo) ApplyAccrual(ctx context.Context, tx repository.Tx, userID string, payout, activeDailyIncome decimal.Decimal) error {
	if m.ApplyAccrualFunc != nil {
		return m.ApplyAccrualFunc(ctx, tx, userID, payout, activeDailyIncome)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.Balance = u.Balance.Add(payout)
	u.TotalIncome = u.TotalIncome.Add(payout)
	u.DailyIncome = activeDailyIncome
	return nil
}

func (m *MockUserRepo) DebitBalance(ctx context.Context, tx repository.Tx, userID string, amount decimal.Decimal) error {
	if m.DebitBalanceFunc != nil {
		return m.DebitBalanceFunc(ctx, tx, userID, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.Balance.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}
	u.Balance = u.Balance.Sub(amount)
	return nil
}

func (m *MockUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store), nil
}

func (m *MockUserRepo) TotalBalance(ctx context.Context, tx repository.Tx) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, u := range m.store {
		total = total.Add(u.Balance)
	}
	return total, nil
}

func (m *MockUserRepo) TotalDailyIncome(ctx context.Context, tx repository.Tx) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, u := range m.store {
		total = total.Add(u.DailyIncome)
	}
	return total, nil
}

// ---- Mock OrderRepository ----

type MockOrderRepo struct {
	mu    sync.Mutex
	store map[string]*model.Order

	SaveFunc         func(ctx context.Context, tx repository.Tx, o *model.Order) error
	ApplyAccrualFunc func(ctx context.Context, tx repository.Tx, orderID string, remainingDays int, status model.OrderStatus, syncedAt, dayStart time.Time) error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{store: make(map[string]*model.Order)}
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func (m *MockOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.store[o.ID] = &cp
	return nil
}

func (m *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.store {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sortOrders(out)
	return out, nil
}

func (m *MockOrderRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.store {
		if o.UserID == userID && o.Status == model.OrderStatusActive {
			cp := *o
			out = append(out, &cp)
		}
	}
	sortOrders(out)
	return out, nil
}

func (m *MockOrderRepo) ApplyAccrual(ctx context.Context, tx repository.Tx, orderID string, remainingDays int, status model.OrderStatus, syncedAt, dayStart time.Time) error {
	if m.ApplyAccrualFunc != nil {
		return m.ApplyAccrualFunc(ctx, tx, orderID, remainingDays, status, syncedAt, dayStart)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status != model.OrderStatusActive || !o.LastSync.Before(dayStart) {
		return domain.ErrAccrualConflict
	}
	o.RemainingDays = remainingDays
	o.Status = status
	o.LastSync = syncedAt
	return nil
}

func (m *MockOrderRepo) ListUserIDsDue(ctx context.Context, tx repository.Tx, dayStart time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, o := range m.store {
		if o.EligibleForPayout(dayStart) && !seen[o.UserID] {
			seen[o.UserID] = true
			out = append(out, o.UserID)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockOrderRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.OrderStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.OrderStatus]int{}
	for _, o := range m.store {
		out[o.Status]++
	}
	return out, nil
}

func sortOrders(orders []*model.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
}

// ---- Mock WeekendOrderRepository ----

type MockWeekendOrderRepo struct {
	mu    sync.Mutex
	store map[string]*model.WeekendOrder

	SaveFunc         func(ctx context.Context, tx repository.Tx, o *model.WeekendOrder) error
	ApplyAccrualFunc func(ctx context.Context, tx repository.Tx, orderID string, payout decimal.Decimal, remainingDays int, status model.OrderStatus, syncedAt, dayStart time.Time) error
}

func NewMockWeekendOrderRepo() *MockWeekendOrderRepo {
	return &MockWeekendOrderRepo{store: make(map[string]*model.WeekendOrder)}
}

var _ repository.WeekendOrderRepository = (*MockWeekendOrderRepo)(nil)

func (m *MockWeekendOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.WeekendOrder) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.store[o.ID] = &cp
	return nil
}

func (m *MockWeekendOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.WeekendOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockWeekendOrderRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.WeekendOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.WeekendOrder
	for _, o := range m.store {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockWeekendOrderRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.WeekendOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.WeekendOrder
	for _, o := range m.store {
		if o.UserID == userID && o.Status == model.OrderStatusActive {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockWeekendOrderRepo) ApplyAccrual(ctx context.Context, tx repository.Tx, orderID string, payout decimal.Decimal, remainingDays int, status model.OrderStatus, syncedAt, dayStart time.Time) error {
	if m.ApplyAccrualFunc != nil {
		return m.ApplyAccrualFunc(ctx, tx, orderID, payout, remainingDays, status, syncedAt, dayStart)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status != model.OrderStatusActive || !o.LastSync.Before(dayStart) {
		return domain.ErrAccrualConflict
	}
	o.WeekendBalance = o.WeekendBalance.Add(payout)
	o.RemainingDays = remainingDays
	o.Status = status
	o.LastSync = syncedAt
	return nil
}

func (m *MockWeekendOrderRepo) ListUserIDsDue(ctx context.Context, tx repository.Tx, dayStart time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, o := range m.store {
		if o.EligibleForPayout(dayStart) && !seen[o.UserID] {
			seen[o.UserID] = true
			out = append(out, o.UserID)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockWeekendOrderRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.OrderStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.OrderStatus]int{}
	for _, o := range m.store {
		out[o.Status]++
	}
	return out, nil
}

func (m *MockWeekendOrderRepo) TotalWeekendBalance(ctx context.Context, tx repository.Tx) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, o := range m.store {
		total = total.Add(o.WeekendBalance)
	}
	return total, nil
}

// ---- Mock ProductRepository ----

type MockProductRepo struct {
	mu    sync.Mutex
	store map[string]*model.Product

	SaveFunc func(ctx context.Context, tx repository.Tx, p *model.Product) error
}

func NewMockProductRepo() *MockProductRepo {
	return &MockProductRepo{store: make(map[string]*model.Product)}
}

var _ repository.ProductRepository = (*MockProductRepo)(nil)

func (m *MockProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockProductRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockProductRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Product
	for _, p := range m.store {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
