package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
	"github.com/Rubin-11/coffee-tea-shop/internal/pricing"
)

var _ domain.OrderUseCase = (*orderUseCase)(nil)

const (
	defaultNumberAttempts = 5
	maxListLimit          = 100
)

type orderUseCase struct {
	store          domain.Store
	engine         *pricing.Engine
	carts          domain.CartUseCase
	hooks          *OrderHooks
	numberAttempts int
	now            func() time.Time
	log            *logrus.Logger
}

type OrderOption func(*orderUseCase)

// WithClock sets the time source used for order numbering.
func WithClock(now func() time.Time) OrderOption {
	return func(uc *orderUseCase) { uc.now = now }
}

// WithNumberAttempts bounds how often checkout retries after losing an
// order number race.
func WithNumberAttempts(n int) OrderOption {
	return func(uc *orderUseCase) {
		if n > 0 {
			uc.numberAttempts = n
		}
	}
}

func WithHooks(hooks *OrderHooks) OrderOption {
	return func(uc *orderUseCase) { uc.hooks = hooks }
}

func NewOrderUseCase(store domain.Store, engine *pricing.Engine, carts domain.CartUseCase, logger *logrus.Logger, opts ...OrderOption) domain.OrderUseCase {
	uc := &orderUseCase{
		store:          store,
		engine:         engine,
		carts:          carts,
		numberAttempts: defaultNumberAttempts,
		now:            time.Now,
		log:            logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *orderUseCase) QuoteCart(ctx context.Context, owner domain.Identity, method domain.DeliveryMethod) (*domain.Quote, error) {
	if !method.Valid() {
		return nil, domain.NewValidationError("delivery_method", "must be one of: pickup, courier, post")
	}
	items, err := uc.carts.GetLineItems(ctx, owner)
	if err != nil {
		return nil, err
	}
	quote := uc.engine.Quote(pricing.LinesFromCart(items), method, pricing.Customer{Identity: owner})
	return &quote, nil
}

func (uc *orderUseCase) QuoteAllMethods(ctx context.Context, owner domain.Identity) ([]domain.Quote, error) {
	items, err := uc.carts.GetLineItems(ctx, owner)
	if err != nil {
		return nil, err
	}
	return uc.engine.QuoteAll(pricing.LinesFromCart(items), pricing.Customer{Identity: owner}), nil
}

func (uc *orderUseCase) Checkout(ctx context.Context, owner domain.Identity, data domain.CheckoutData) (*domain.Order, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	data.Normalize()
	if err := data.Validate(); err != nil {
		uc.log.Warnf("Use Case: Checkout data of %s rejected: %v", owner, err)
		return nil, err
	}

	var (
		order *domain.Order
		err   error
	)
	for attempt := 1; attempt <= uc.numberAttempts; attempt++ {
		order, err = uc.placeOrder(ctx, owner, data)
		if !errors.Is(err, domain.ErrOrderNumberConflict) {
			break
		}
		uc.log.Warnf("Use Case: Order number race lost on attempt %d/%d for %s, retrying", attempt, uc.numberAttempts, owner)
	}
	if errors.Is(err, domain.ErrOrderNumberConflict) {
		uc.log.Errorf("Use Case: Gave up allocating an order number for %s after %d attempts", owner, uc.numberAttempts)
		return nil, fmt.Errorf("could not allocate order number after %d attempts: %w", uc.numberAttempts, err)
	}
	if err != nil {
		return nil, err
	}

	uc.log.Infof("Use Case: Order %s placed by %s, total %s", order.OrderNumber, owner, order.Total.StringFixed(2))
	uc.hooks.orderPlaced(ctx, order)
	return order, nil
}

// placeOrder is one checkout attempt. Either every effect lands or none.
func (uc *orderUseCase) placeOrder(ctx context.Context, owner domain.Identity, data domain.CheckoutData) (*domain.Order, error) {
	var placed *domain.Order
	err := uc.store.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		items, err := tx.Carts().ListForUpdate(ctx, owner)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return domain.ErrEmptyCart
		}

		products, err := tx.Products().LockByIDs(ctx, productIDs(items))
		if err != nil {
			return err
		}
		if availability := domain.CheckLineAvailability(items, products); !availability.Available {
			uc.log.Warnf("Use Case: Checkout of %s blocked by %d unavailable lines", owner, len(availability.UnavailableItems))
			return &domain.ItemsUnavailableError{Items: availability.UnavailableItems}
		}

		quote := uc.engine.Quote(pricing.LinesFromCart(items), data.DeliveryMethod, pricing.Customer{Identity: owner})

		number, err := NextOrderNumber(ctx, tx.Orders(), uc.now())
		if err != nil {
			return err
		}

		order := newOrder(owner, data, quote, number)
		for _, item := range items {
			name := item.ProductName
			if p := products[item.ProductID]; p != nil {
				name = p.Name
			}
			order.Items = append(order.Items, domain.OrderItem{
				ProductID:   item.ProductID,
				ProductName: name,
				Quantity:    item.Quantity,
				Price:       item.Price,
				Total:       pricing.LineTotal(item.Price, item.Quantity),
			})
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		for _, item := range order.Items {
			if err := tx.Products().Decrement(ctx, item.ProductID, item.Quantity); err != nil {
				uc.log.Warnf("Use Case: Stock decrement failed for product %d in order %s: %v", item.ProductID, number, err)
				return err
			}
		}

		// Lines added while the order was being placed stay in the cart.
		lineIDs := make([]int64, len(items))
		for i, item := range items {
			lineIDs[i] = item.ID
		}
		if _, err := tx.Carts().RemoveLines(ctx, owner, lineIDs); err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func newOrder(owner domain.Identity, data domain.CheckoutData, quote domain.Quote, number string) *domain.Order {
	order := &domain.Order{
		OrderNumber:     number,
		CustomerName:    data.CustomerName,
		CustomerEmail:   data.CustomerEmail,
		CustomerPhone:   data.CustomerPhone,
		DeliveryAddress: data.DeliveryAddress,
		DeliveryMethod:  data.DeliveryMethod,
		PaymentMethod:   data.PaymentMethod,
		Subtotal:        quote.Subtotal,
		DeliveryCost:    quote.DeliveryCost,
		Discount:        quote.Discount,
		Total:           quote.Total,
		Status:          domain.StatusPending,
		PaymentStatus:   domain.PaymentPending,
		Notes:           data.Notes,
		Items:           []domain.OrderItem{},
	}
	if id, ok := owner.UserID(); ok {
		order.UserID = &id
	} else if token, ok := owner.SessionToken(); ok {
		order.SessionID = &token
	}
	return order
}

func (uc *orderUseCase) GetOrder(ctx context.Context, orderID int64, requester domain.Identity) (*domain.Order, error) {
	if err := requester.Validate(); err != nil {
		return nil, err
	}
	order, err := uc.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(requester) {
		uc.log.Warnf("Use Case: %s tried to read order %d of another customer", requester, orderID)
		return nil, domain.ErrForbidden
	}
	return order, nil
}

func (uc *orderUseCase) ListOrders(ctx context.Context, requester domain.Identity, limit, offset int) ([]domain.Order, error) {
	if err := requester.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxListLimit {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return uc.store.Orders().ListByOwner(ctx, requester, limit, offset)
}

func (uc *orderUseCase) Reorder(ctx context.Context, orderID int64, requester domain.Identity) (*domain.ReorderResult, error) {
	order, err := uc.GetOrder(ctx, orderID, requester)
	if err != nil {
		return nil, err
	}

	result := &domain.ReorderResult{UnavailableProductNames: []string{}}
	for _, item := range order.Items {
		_, err := uc.carts.AddItem(ctx, requester, item.ProductID, item.Quantity)
		if err == nil {
			result.AddedCount++
			continue
		}
		if !isSkippable(err) {
			return nil, err
		}
		uc.log.Infof("Use Case: Reorder of %s skips product %d: %v", order.OrderNumber, item.ProductID, err)
		result.UnavailableProductNames = append(result.UnavailableProductNames, item.ProductName)
	}
	return result, nil
}

// isSkippable reports whether a failed re-add is about the product rather
// than the system.
func isSkippable(err error) bool {
	var stockErr *domain.InsufficientStockError
	var validationErr *domain.ValidationError
	return errors.Is(err, domain.ErrProductNotFound) ||
		errors.Is(err, domain.ErrProductUnavailable) ||
		errors.As(err, &stockErr) ||
		errors.As(err, &validationErr)
}
