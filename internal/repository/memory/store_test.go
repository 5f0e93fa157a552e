package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

func seeded(t *testing.T) (*Store, int64) {
	t.Helper()
	s := NewStore()
	s.SetClock(func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) })
	id := s.PutProduct(domain.Product{Name: "Pu-erh", Price: decimal.NewFromInt(1200), Stock: 5, IsAvailable: true})
	return s, id
}

func TestTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s, id := seeded(t)
	owner := domain.Authenticated(1)
	boom := errors.New("boom")

	err := s.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		require.NoError(t, tx.Products().Decrement(ctx, id, 3))
		_, err := tx.Carts().AddOrIncrement(ctx, owner, id, 1, decimal.NewFromInt(1200))
		require.NoError(t, err)
		require.NoError(t, tx.Orders().Create(ctx, &domain.Order{OrderNumber: "ORD-2026-00001", UserID: ptr(int64(1))}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.Products().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
	n, err := s.Carts().Count(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, n)
	seq, err := s.Orders().LastSequence(ctx, 2026)
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestTransactionCommits(t *testing.T) {
	ctx := context.Background()
	s, id := seeded(t)

	err := s.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		return tx.Products().Decrement(ctx, id, 2)
	})
	require.NoError(t, err)

	p, err := s.Products().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestTransactionHonoursCancelledContext(t *testing.T) {
	s, _ := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTransaction(ctx, func(context.Context, domain.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDecrementIsConditional(t *testing.T) {
	ctx := context.Background()
	s, id := seeded(t)

	err := s.Products().Decrement(ctx, id, 6)
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Available)

	require.NoError(t, s.Products().Decrement(ctx, id, 5))
	require.NoError(t, s.Products().Restore(ctx, id, 2))
	p, err := s.Products().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)

	assert.ErrorIs(t, s.Products().Decrement(ctx, 404, 1), domain.ErrProductNotFound)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s, id := seeded(t)
	order := &domain.Order{
		OrderNumber: "ORD-2026-00007",
		UserID:      ptr(int64(1)),
		Items:       []domain.OrderItem{{ProductID: id, Quantity: 1, Price: decimal.NewFromInt(1200)}},
	}
	require.NoError(t, s.Orders().Create(ctx, order))
	assert.NotZero(t, order.Items[0].ID)
	assert.Equal(t, order.ID, order.Items[0].OrderID)

	got, err := s.Orders().GetByID(ctx, order.ID)
	require.NoError(t, err)
	got.Items[0].Quantity = 99
	got.Status = domain.StatusDelivered

	again, err := s.Orders().GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
	assert.NotEqual(t, domain.StatusDelivered, again.Status)

	seq, err := s.Orders().LastSequence(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, 7, seq)

	err = s.Orders().Create(ctx, &domain.Order{OrderNumber: "ORD-2026-00007"})
	assert.ErrorIs(t, err, domain.ErrOrderNumberConflict)
}

func TestListByOwnerPaginates(t *testing.T) {
	ctx := context.Background()
	s, _ := seeded(t)
	session := "guest-list"
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Orders().Create(ctx, &domain.Order{
			OrderNumber: "ORD-2026-0000" + string(rune('0'+i)),
			SessionID:   &session,
		}))
	}
	require.NoError(t, s.Orders().Create(ctx, &domain.Order{OrderNumber: "ORD-2026-00009", UserID: ptr(int64(3))}))

	page, err := s.Orders().ListByOwner(ctx, domain.Guest(session), 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "ORD-2026-00004", page[0].OrderNumber)
	assert.Equal(t, "ORD-2026-00003", page[1].OrderNumber)

	empty, err := s.Orders().ListByOwner(ctx, domain.Guest(session), 10, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func ptr[T any](v T) *T { return &v }

func TestRemoveLinesKeepsUnlistedLines(t *testing.T) {
	ctx := context.Background()
	s, id := seeded(t)
	other := s.PutProduct(domain.Product{Name: "Darjeeling", Price: decimal.NewFromInt(900), Stock: 5, IsAvailable: true})
	owner := domain.Guest("guest-lines")
	stranger := domain.Authenticated(9)

	listed, err := s.Carts().AddOrIncrement(ctx, owner, id, 1, decimal.NewFromInt(1200))
	require.NoError(t, err)
	late, err := s.Carts().AddOrIncrement(ctx, owner, other, 2, decimal.NewFromInt(900))
	require.NoError(t, err)
	foreign, err := s.Carts().AddOrIncrement(ctx, stranger, id, 1, decimal.NewFromInt(1200))
	require.NoError(t, err)

	removed, err := s.Carts().RemoveLines(ctx, owner, []int64{listed.ID, foreign.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	items, err := s.Carts().List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, late.ID, items[0].ID)
	n, err := s.Carts().Count(ctx, stranger)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
