package grpc

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

type OrderHandler struct {
	orders    domain.OrderUseCase
	lifecycle domain.OrderLifecycleUseCase
	log       *logrus.Logger
}

func NewOrderHandler(orders domain.OrderUseCase, lifecycle domain.OrderLifecycleUseCase, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		lifecycle: lifecycle,
		log:       logger,
	}
}

func (h *OrderHandler) caller(c Caller) (domain.Identity, error) {
	id, err := c.identity()
	if err != nil {
		return id, status.Error(codes.Unauthenticated, "Exactly one of user_id or session_id must identify the caller")
	}
	return id, nil
}

func (h *OrderHandler) QuoteCart(ctx context.Context, req *QuoteCartRequest) (*domain.Quote, error) {
	owner, err := h.caller(req.Caller)
	if err != nil {
		return nil, err
	}
	if req.DeliveryMethod == "" {
		req.DeliveryMethod = domain.DeliveryPickup
	}

	quote, err := h.orders.QuoteCart(ctx, owner, req.DeliveryMethod)
	if err != nil {
		h.log.Warnf("gRPC Handler: QuoteCart use case error for %s: %v", owner, err)
		return nil, mapOrderDomainErrorToGrpcStatus(err)
	}
	return quote, nil
}

func (h *OrderHandler) Checkout(ctx context.Context, req *CheckoutRequest) (*domain.Order, error) {
	owner, err := h.caller(req.Caller)
	if err != nil {
		return nil, err
	}
	h.log.Infof("gRPC Handler: Received Checkout request for %s", owner)

	order, err := h.orders.Checkout(ctx, owner, req.Checkout)
	if err != nil {
		h.log.Errorf("gRPC Handler: Checkout use case error for %s: %v", owner, err)
		return nil, mapOrderDomainErrorToGrpcStatus(err)
	}

	h.log.Infof("gRPC Handler: Order %s created for %s", order.OrderNumber, owner)
	return order, nil
}

func (h *OrderHandler) GetOrder(ctx context.Context, req *OrderRequest) (*domain.Order, error) {
	owner, err := h.caller(req.Caller)
	if err != nil {
		return nil, err
	}
	if req.OrderID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "Invalid Order ID")
	}

	order, err := h.orders.GetOrder(ctx, req.OrderID, owner)
	if err != nil {
		h.log.Warnf("gRPC Handler: GetOrder use case error for OrderID %d: %v", req.OrderID, err)
		return nil, mapOrderDomainErrorToGrpcStatus(err)
	}
	return order, nil
}

func (h *OrderHandler) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	owner, err := h.caller(req.Caller)
	if err != nil {
		return nil, err
	}
	if req.Limit < 0 || req.Offset < 0 {
		return nil, status.Error(codes.InvalidArgument, "Invalid pagination parameters")
	}

	orders, err := h.orders.ListOrders(ctx, owner, req.Limit, req.Offset)
	if err != nil {
		h.log.Errorf("gRPC Handler: ListOrders use case error for %s: %v", owner, err)
		return nil, mapOrderDomainErrorToGrpcStatus(err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return &ListOrdersResponse{Orders: orders}, nil
}

func (h *OrderHandler) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*domain.Order, error) {
	owner, err := h.caller(req.Caller)
	if err != nil {
		return nil, err
	}
	if req.OrderID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "Invalid Order ID")
	}

	order, err := h.lifecycle.CancelOrder(ctx, req.OrderID, owner, req.Reason)
	if err != nil {
		h.log.Warnf("gRPC Handler: CancelOrder use case error for OrderID %d: %v", req.OrderID, err)
		return nil, mapOrderDomainErrorToGrpcStatus(err)
	}
	h.log.Infof("gRPC Handler: Order %s cancelled by %s", order.OrderNumber, owner)
	return order, nil
}

func (h *OrderHandler) Reorder(ctx context.Context, req *OrderRequest) (*domain.ReorderResult, error) {
	owner, err := h.caller(req.Caller)
	if err != nil {
		return nil, err
	}
	if req.OrderID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "Invalid Order ID")
	}

	result, err := h.orders.Reorder(ctx, req.OrderID, owner)
	if err != nil {
		h.log.Warnf("gRPC Handler: Reorder use case error for OrderID %d: %v", req.OrderID, err)
		return nil, mapOrderDomainErrorToGrpcStatus(err)
	}
	return result, nil
}

func mapOrderDomainErrorToGrpcStatus(err error) error {
	if err == nil {
		return nil
	}
	var (
		validationErr  *domain.ValidationError
		stockErr       *domain.InsufficientStockError
		unavailableErr *domain.ItemsUnavailableError
		notCancellable *domain.NotCancellableError
		transitionErr  *domain.InvalidTransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrInvalidIdentity):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCartItemNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrEmptyCart),
		errors.As(err, &stockErr),
		errors.As(err, &unavailableErr),
		errors.As(err, &notCancellable),
		errors.As(err, &transitionErr),
		errors.Is(err, domain.ErrProductUnavailable),
		errors.Is(err, domain.ErrPaymentSettled):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrOrderNumberConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Errorf(codes.Internal, "Internal server error: %v", err)
}
