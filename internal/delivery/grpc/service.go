package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

const ServiceName = "shop.OrderService"

// Caller identifies the customer on whose behalf a call is made. Exactly one
// of the fields must be set.
type Caller struct {
	UserID    int64  `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func (c Caller) identity() (domain.Identity, error) {
	var id domain.Identity
	switch {
	case c.UserID != 0 && c.SessionID != "":
		return id, domain.ErrInvalidIdentity
	case c.UserID != 0:
		id = domain.Authenticated(c.UserID)
	default:
		id = domain.Guest(c.SessionID)
	}
	return id, id.Validate()
}

type QuoteCartRequest struct {
	Caller
	DeliveryMethod domain.DeliveryMethod `json:"delivery_method"`
}

type CheckoutRequest struct {
	Caller
	Checkout domain.CheckoutData `json:"checkout"`
}

type OrderRequest struct {
	Caller
	OrderID int64 `json:"order_id"`
}

type CancelOrderRequest struct {
	Caller
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

type ListOrdersRequest struct {
	Caller
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

type ListOrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

type OrderServiceServer interface {
	QuoteCart(ctx context.Context, req *QuoteCartRequest) (*domain.Quote, error)
	Checkout(ctx context.Context, req *CheckoutRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, req *OrderRequest) (*domain.Order, error)
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error)
	CancelOrder(ctx context.Context, req *CancelOrderRequest) (*domain.Order, error)
	Reorder(ctx context.Context, req *OrderRequest) (*domain.ReorderResult, error)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(OrderServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(OrderServiceServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// OrderServiceDesc is registered by hand; messages travel as JSON through
// the codec in codec.go.
var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("QuoteCart", OrderServiceServer.QuoteCart),
		unary("Checkout", OrderServiceServer.Checkout),
		unary("GetOrder", OrderServiceServer.GetOrder),
		unary("ListOrders", OrderServiceServer.ListOrders),
		unary("CancelOrder", OrderServiceServer.CancelOrder),
		unary("Reorder", OrderServiceServer.Reorder),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shop/order_service",
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

// OrderServiceClient calls OrderService with the JSON codec.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) QuoteCart(ctx context.Context, in *QuoteCartRequest, opts ...grpc.CallOption) (*domain.Quote, error) {
	return invoke[domain.Quote](ctx, c.cc, "QuoteCart", in, opts)
}

func (c *OrderServiceClient) Checkout(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*domain.Order, error) {
	return invoke[domain.Order](ctx, c.cc, "Checkout", in, opts)
}

func (c *OrderServiceClient) GetOrder(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) (*domain.Order, error) {
	return invoke[domain.Order](ctx, c.cc, "GetOrder", in, opts)
}

func (c *OrderServiceClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c.cc, "ListOrders", in, opts)
}

func (c *OrderServiceClient) CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*domain.Order, error) {
	return invoke[domain.Order](ctx, c.cc, "CancelOrder", in, opts)
}

func (c *OrderServiceClient) Reorder(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) (*domain.ReorderResult, error) {
	return invoke[domain.ReorderResult](ctx, c.cc, "Reorder", in, opts)
}
