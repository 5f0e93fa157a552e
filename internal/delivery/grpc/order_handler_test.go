package grpc

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
	"github.com/Rubin-11/coffee-tea-shop/internal/pricing"
	"github.com/Rubin-11/coffee-tea-shop/internal/repository/memory"
	"github.com/Rubin-11/coffee-tea-shop/internal/usecase"
)

type harness struct {
	client *OrderServiceClient
	carts  domain.CartUseCase
	store  *memory.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memory.NewStore()
	engine := pricing.NewEngine(pricing.DefaultPolicy())
	carts := usecase.NewCartUseCase(store, engine, log)
	orders := usecase.NewOrderUseCase(store, engine, carts, log)
	lifecycle := usecase.NewOrderLifecycleUseCase(store, log)

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(LoggingInterceptor(log)))
	RegisterOrderServiceServer(server, NewOrderHandler(orders, lifecycle, log))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{client: NewOrderServiceClient(conn), carts: carts, store: store}
}

func (h *harness) product(name, price string, stock int) int64 {
	return h.store.PutProduct(domain.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock, IsAvailable: true})
}

func checkoutData() domain.CheckoutData {
	return domain.CheckoutData{
		CustomerName:   "Anna Smirnova",
		CustomerEmail:  "anna@example.com",
		CustomerPhone:  "+79991112233",
		DeliveryMethod: domain.DeliveryPickup,
		PaymentMethod:  domain.PaymentCash,
	}
}

func TestCheckoutOverGrpc(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	beans := h.product("Rwanda", "1600", 10)
	caller := Caller{SessionID: "grpc-guest"}

	_, err := h.carts.AddItem(ctx, domain.Guest("grpc-guest"), beans, 2)
	require.NoError(t, err)

	quote, err := h.client.QuoteCart(ctx, &QuoteCartRequest{Caller: caller, DeliveryMethod: domain.DeliveryCourier})
	require.NoError(t, err)
	assert.True(t, quote.Subtotal.Equal(decimal.NewFromInt(3200)))
	assert.True(t, quote.DeliveryCost.IsZero())
	assert.True(t, quote.Discount.Equal(decimal.NewFromInt(160)))
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(3040)))

	order, err := h.client.Checkout(ctx, &CheckoutRequest{Caller: caller, Checkout: checkoutData()})
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, domain.StatusPending, order.Status)

	got, err := h.client.GetOrder(ctx, &OrderRequest{Caller: caller, OrderID: order.ID})
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)

	list, err := h.client.ListOrders(ctx, &ListOrdersRequest{Caller: caller})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 1)

	_, err = h.client.GetOrder(ctx, &OrderRequest{Caller: Caller{UserID: 77}, OrderID: order.ID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	cancelled, err := h.client.CancelOrder(ctx, &CancelOrderRequest{Caller: caller, OrderID: order.ID, Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	result, err := h.client.Reorder(ctx, &OrderRequest{Caller: caller, OrderID: order.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.AddedCount)
}

func TestGrpcErrorCodes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.client.Checkout(ctx, &CheckoutRequest{Caller: Caller{UserID: 1}, Checkout: checkoutData()})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = h.client.QuoteCart(ctx, &QuoteCartRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = h.client.QuoteCart(ctx, &QuoteCartRequest{Caller: Caller{UserID: 1, SessionID: "both"}})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = h.client.GetOrder(ctx, &OrderRequest{Caller: Caller{UserID: 1}, OrderID: 123})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = h.client.CancelOrder(ctx, &CancelOrderRequest{Caller: Caller{UserID: 1}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	bad := checkoutData()
	bad.CustomerEmail = "nope"
	_, err = h.client.Checkout(ctx, &CheckoutRequest{Caller: Caller{UserID: 1}, Checkout: bad})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestMapOrderDomainErrorToGrpcStatus(t *testing.T) {
	assert.Nil(t, mapOrderDomainErrorToGrpcStatus(nil))
	assert.Equal(t, codes.Aborted, status.Code(mapOrderDomainErrorToGrpcStatus(domain.ErrOrderNumberConflict)))
	assert.Equal(t, codes.FailedPrecondition, status.Code(mapOrderDomainErrorToGrpcStatus(&domain.InvalidTransitionError{})))
	assert.Equal(t, codes.Internal, status.Code(mapOrderDomainErrorToGrpcStatus(errors.New("disk on fire"))))
}

func TestLoggingInterceptorRecoversPanics(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	info := &grpc.UnaryServerInfo{FullMethod: fullMethod("Checkout")}

	_, err := LoggingInterceptor(log)(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))

	resp, err := LoggingInterceptor(log)(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}
