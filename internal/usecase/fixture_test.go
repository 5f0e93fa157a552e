package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Rubin-11/coffee-tea-shop/internal/clients"
	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
	"github.com/Rubin-11/coffee-tea-shop/internal/pricing"
	"github.com/Rubin-11/coffee-tea-shop/internal/repository/memory"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fixture struct {
	store     *memory.Store
	clock     *clock
	carts     domain.CartUseCase
	orders    domain.OrderUseCase
	lifecycle *orderLifecycleUseCase
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	wrap     func(*memory.Store) domain.Store
	hooks    func(lifecycle domain.OrderLifecycleUseCase) *OrderHooks
	attempts int
}

func withStore(wrap func(*memory.Store) domain.Store) fixtureOption {
	return func(c *fixtureConfig) { c.wrap = wrap }
}

func withHooks(build func(lifecycle domain.OrderLifecycleUseCase) *OrderHooks) fixtureOption {
	return func(c *fixtureConfig) { c.hooks = build }
}

func withAttempts(n int) fixtureOption {
	return func(c *fixtureConfig) { c.attempts = n }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	mem := memory.NewStore()
	clk := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	mem.SetClock(clk.Now)

	cfg := fixtureConfig{attempts: defaultNumberAttempts}
	for _, opt := range opts {
		opt(&cfg)
	}
	var store domain.Store = mem
	if cfg.wrap != nil {
		store = cfg.wrap(mem)
	}

	log := quietLogger()
	engine := pricing.NewEngine(pricing.DefaultPolicy())
	carts := NewCartUseCase(store, engine, log)
	lifecycle := newOrderLifecycleUseCase(store, clk.Now, log)

	orderOpts := []OrderOption{WithClock(clk.Now), WithNumberAttempts(cfg.attempts)}
	if cfg.hooks != nil {
		orderOpts = append(orderOpts, WithHooks(cfg.hooks(lifecycle)))
	}

	return &fixture{
		store:     mem,
		clock:     clk,
		carts:     carts,
		orders:    NewOrderUseCase(store, engine, carts, log, orderOpts...),
		lifecycle: lifecycle,
	}
}

func (f *fixture) product(name, price string, stock int) int64 {
	return f.store.PutProduct(domain.Product{
		Name:        name,
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		IsAvailable: true,
	})
}

func (f *fixture) stock(t *testing.T, productID int64) int {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func pickupCash() domain.CheckoutData {
	return domain.CheckoutData{
		CustomerName:   "Anna Petrova",
		CustomerEmail:  "anna@example.com",
		CustomerPhone:  "+7 900 000 00 00",
		DeliveryMethod: domain.DeliveryPickup,
		PaymentMethod:  domain.PaymentCash,
	}
}

// flakyStore makes the first conflicts order inserts fail as if another
// checkout had taken the number.
type flakyStore struct {
	*memory.Store
	conflicts int
	creates   int
}

func (s *flakyStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) error {
	return s.Store.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		return fn(ctx, flakyRepos{Repositories: tx, s: s})
	})
}

type flakyRepos struct {
	domain.Repositories
	s *flakyStore
}

func (r flakyRepos) Orders() domain.OrderRepository {
	return flakyOrders{OrderRepository: r.Repositories.Orders(), s: r.s}
}

type flakyOrders struct {
	domain.OrderRepository
	s *flakyStore
}

func (o flakyOrders) Create(ctx context.Context, order *domain.Order) error {
	o.s.creates++
	if o.s.conflicts > 0 {
		o.s.conflicts--
		return fmt.Errorf("%w: %s", domain.ErrOrderNumberConflict, order.OrderNumber)
	}
	return o.OrderRepository.Create(ctx, order)
}

type inlineQueue struct{}

func (inlineQueue) Enqueue(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []string
	err    error
}

func (n *recordingNotifier) SendOrderConfirmation(_ context.Context, order *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order.OrderNumber)
	return n.err
}

func (n *recordingNotifier) Close() error { return nil }

type rejectingPayments struct{}

func (rejectingPayments) ProcessPayment(context.Context, *domain.Order) (*clients.PaymentResult, error) {
	return &clients.PaymentResult{Success: false, Message: "card declined"}, nil
}

// stockRecorder logs the product lock and stock calls made inside
// transactions.
type stockRecorder struct {
	*memory.Store
	mu    sync.Mutex
	calls []string
}

func (s *stockRecorder) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) error {
	return s.Store.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		return fn(ctx, recordingRepos{Repositories: tx, s: s})
	})
}

func (s *stockRecorder) record(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *stockRecorder) reset() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := s.calls
	s.calls = nil
	return calls
}

type recordingRepos struct {
	domain.Repositories
	s *stockRecorder
}

func (r recordingRepos) Products() domain.ProductRepository {
	return recordingProducts{ProductRepository: r.Repositories.Products(), s: r.s}
}

type recordingProducts struct {
	domain.ProductRepository
	s *stockRecorder
}

func (p recordingProducts) LockByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	p.s.record("lock %v", ids)
	return p.ProductRepository.LockByIDs(ctx, ids)
}

func (p recordingProducts) Decrement(ctx context.Context, id int64, quantity int) error {
	p.s.record("decrement %d", id)
	return p.ProductRepository.Decrement(ctx, id, quantity)
}

func (p recordingProducts) Restore(ctx context.Context, id int64, quantity int) error {
	p.s.record("restore %d", id)
	return p.ProductRepository.Restore(ctx, id, quantity)
}

// hostedPayments answers every payment with a redirect to baseURL.
type hostedPayments struct {
	baseURL string
	err     error
}

func (p hostedPayments) ProcessPayment(_ context.Context, order *domain.Order) (*clients.PaymentResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &clients.PaymentResult{Success: true, PaymentURL: p.baseURL + "/" + order.OrderNumber, Message: "redirect"}, nil
}

// lateLineStore adds a cart line right after checkout lists the cart, as a
// concurrent request would.
type lateLineStore struct {
	*memory.Store
	productID int64
}

func (s *lateLineStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) error {
	return s.Store.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		return fn(ctx, lateLineRepos{Repositories: tx, s: s})
	})
}

type lateLineRepos struct {
	domain.Repositories
	s *lateLineStore
}

func (r lateLineRepos) Carts() domain.CartRepository {
	return lateLineCarts{CartRepository: r.Repositories.Carts(), s: r.s}
}

type lateLineCarts struct {
	domain.CartRepository
	s *lateLineStore
}

func (c lateLineCarts) ListForUpdate(ctx context.Context, owner domain.Identity) ([]domain.CartItem, error) {
	items, err := c.CartRepository.ListForUpdate(ctx, owner)
	if err != nil || c.s.productID == 0 {
		return items, err
	}
	_, err = c.CartRepository.AddOrIncrement(ctx, owner, c.s.productID, 1, decimal.NewFromInt(100))
	c.s.productID = 0
	return items, err
}
