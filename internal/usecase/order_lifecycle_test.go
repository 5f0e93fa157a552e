package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
	"github.com/Rubin-11/coffee-tea-shop/internal/repository/memory"
)

func placeOrder(t *testing.T, f *fixture, owner domain.Identity, productID int64, qty int) *domain.Order {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, owner, productID, qty)
	require.NoError(t, err)
	order, err := f.orders.Checkout(ctx, owner, pickupCash())
	require.NoError(t, err)
	return order
}

func TestCancelOrderRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	beans := f.product("Kenya AA", "650", 10)
	user := domain.Authenticated(5)
	order := placeOrder(t, f, user, beans, 3)
	require.Equal(t, 7, f.stock(t, beans))

	cancelled, err := f.lifecycle.CancelOrder(ctx, order.ID, user, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, "changed my mind", cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, f.clock.Now(), *cancelled.CancelledAt)
	assert.Equal(t, 10, f.stock(t, beans))

	_, err = f.lifecycle.CancelOrder(ctx, order.ID, user, "again")
	var notCancellable *domain.NotCancellableError
	require.ErrorAs(t, err, &notCancellable)
	assert.Equal(t, domain.StatusCancelled, notCancellable.Status)
	assert.Equal(t, 10, f.stock(t, beans))
}

func TestCancelOrderLocksProductsInCheckoutOrder(t *testing.T) {
	ctx := context.Background()
	var rec *stockRecorder
	f := newFixture(t, withStore(func(s *memory.Store) domain.Store {
		rec = &stockRecorder{Store: s}
		return rec
	}))
	tea := f.product("Sencha", "300", 10)
	coffee := f.product("Yirgacheffe", "900", 10)
	user := domain.Authenticated(12)

	_, err := f.carts.AddItem(ctx, user, coffee, 1)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, user, tea, 2)
	require.NoError(t, err)
	rec.reset()

	order, err := f.orders.Checkout(ctx, user, pickupCash())
	require.NoError(t, err)
	require.Equal(t, coffee, order.Items[0].ProductID)
	checkout := rec.reset()
	require.NotEmpty(t, checkout)
	assert.Equal(t, fmt.Sprintf("lock %v", []int64{tea, coffee}), checkout[0])

	_, err = f.lifecycle.CancelOrder(ctx, order.ID, user, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		fmt.Sprintf("lock %v", []int64{tea, coffee}),
		fmt.Sprintf("restore %d", tea),
		fmt.Sprintf("restore %d", coffee),
	}, rec.reset())
	assert.Equal(t, 10, f.stock(t, tea))
	assert.Equal(t, 10, f.stock(t, coffee))
}

func TestCancelOrderGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	beans := f.product("Brazil Santos", "450", 10)
	owner := domain.Guest("guest-x")
	order := placeOrder(t, f, owner, beans, 2)

	_, err := f.lifecycle.CancelOrder(ctx, order.ID, domain.Guest("guest-y"), "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.lifecycle.CancelOrder(ctx, 404, owner, "")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = f.lifecycle.MarkAsPaid(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.lifecycle.MarkShipped(ctx, order.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.CancelOrder(ctx, order.ID, owner, "too late")
	var notCancellable *domain.NotCancellableError
	require.ErrorAs(t, err, &notCancellable)
	assert.Equal(t, domain.StatusShipped, notCancellable.Status)
	assert.Equal(t, 8, f.stock(t, beans))
}

func TestCancelPaidOrderIsAllowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	beans := f.product("Sumatra", "520", 4)
	user := domain.Authenticated(8)
	order := placeOrder(t, f, user, beans, 4)

	_, err := f.lifecycle.MarkAsPaid(ctx, order.ID)
	require.NoError(t, err)
	cancelled, err := f.lifecycle.CancelOrder(ctx, order.ID, user, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, 4, f.stock(t, beans))
}

func TestMarkAsPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	beans := f.product("Guatemala", "480", 6)
	order := placeOrder(t, f, domain.Authenticated(1), beans, 1)

	paid, err := f.lifecycle.MarkAsPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.Equal(t, domain.PaymentPaid, paid.PaymentStatus)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, 5, f.stock(t, beans))

	_, err = f.lifecycle.MarkAsPaid(ctx, order.ID)
	var transitionErr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, domain.StatusPaid, transitionErr.From)

	_, err = f.lifecycle.MarkPaymentFailed(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentSettled)
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	beans := f.product("Yunnan", "350", 6)
	order := placeOrder(t, f, domain.Authenticated(1), beans, 1)

	o, err := f.lifecycle.StartProcessing(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, o.Status)

	_, err = f.lifecycle.MarkDelivered(ctx, order.ID)
	assert.Error(t, err)

	o, err = f.lifecycle.MarkPaymentFailed(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, o.PaymentStatus)

	o, err = f.lifecycle.MarkAsPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)

	o, err = f.lifecycle.MarkShipped(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, o.ShippedAt)

	o, err = f.lifecycle.MarkDelivered(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, o.Status)
	require.NotNil(t, o.DeliveredAt)

	o, err = f.lifecycle.SetAdminNotes(ctx, order.ID, "left with concierge")
	require.NoError(t, err)
	assert.Equal(t, "left with concierge", o.AdminNotes)
	assert.Equal(t, domain.StatusDelivered, o.Status)
	assert.True(t, o.Total.Equal(order.Total))
}
