// Package memory is an in-process implementation of domain.Store. Every
// transaction holds one store-wide lock and works on a copy of the data,
// which replaces the live data only when the transaction succeeds.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

type state struct {
	products  map[int64]*domain.Product
	cartItems map[int64]*domain.CartItem
	orders    map[int64]*domain.Order

	nextProductID   int64
	nextCartItemID  int64
	nextOrderID     int64
	nextOrderItemID int64
}

func newState() *state {
	return &state{
		products:  make(map[int64]*domain.Product),
		cartItems: make(map[int64]*domain.CartItem),
		orders:    make(map[int64]*domain.Order),
	}
}

func (s *state) clone() *state {
	c := &state{
		products:        make(map[int64]*domain.Product, len(s.products)),
		cartItems:       make(map[int64]*domain.CartItem, len(s.cartItems)),
		orders:          make(map[int64]*domain.Order, len(s.orders)),
		nextProductID:   s.nextProductID,
		nextCartItemID:  s.nextCartItemID,
		nextOrderID:     s.nextOrderID,
		nextOrderItemID: s.nextOrderItemID,
	}
	for id, p := range s.products {
		cp := *p
		c.products[id] = &cp
	}
	for id, item := range s.cartItems {
		ci := *item
		c.cartItems[id] = &ci
	}
	for id, o := range s.orders {
		c.orders[id] = copyOrder(o)
	}
	return c
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ domain.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// SetClock replaces the time source used for record timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutProduct inserts or replaces a catalog product and returns its id.
func (s *Store) PutProduct(p domain.Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.st.nextProductID++
		p.ID = s.st.nextProductID
	} else if p.ID > s.st.nextProductID {
		s.st.nextProductID = p.ID
	}
	s.st.products[p.ID] = &p
	return p.ID
}

func (s *Store) Carts() domain.CartRepository       { return &cartRepo{base{store: s}} }
func (s *Store) Orders() domain.OrderRepository     { return &orderRepo{base{store: s}} }
func (s *Store) Products() domain.ProductRepository { return &productRepo{base{store: s}} }

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &txRepos{base{store: s, tx: work}}); err != nil {
		return err
	}
	s.st = work
	return nil
}

type txRepos struct {
	b base
}

func (t *txRepos) Carts() domain.CartRepository       { return &cartRepo{t.b} }
func (t *txRepos) Orders() domain.OrderRepository     { return &orderRepo{t.b} }
func (t *txRepos) Products() domain.ProductRepository { return &productRepo{t.b} }

// base runs repository calls either against a transaction's working copy or,
// outside a transaction, against the live data under the store lock.
type base struct {
	store *Store
	tx    *state
}

func (b base) with(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.st)
}

func (b base) clock() time.Time {
	return b.store.now().UTC()
}
