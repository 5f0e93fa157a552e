package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
	"github.com/Rubin-11/coffee-tea-shop/internal/pricing"
)

var _ domain.CartUseCase = (*cartUseCase)(nil)

// priceEpsilon is the largest captured/live price difference left alone by
// SyncPrices.
var priceEpsilon = decimal.RequireFromString("0.01")

type cartUseCase struct {
	store  domain.Store
	engine *pricing.Engine
	log    *logrus.Logger
}

func NewCartUseCase(store domain.Store, engine *pricing.Engine, logger *logrus.Logger) domain.CartUseCase {
	return &cartUseCase{
		store:  store,
		engine: engine,
		log:    logger,
	}
}

func validateQuantity(quantity int) error {
	if quantity < 1 || quantity > domain.MaxCartItemQuantity {
		return domain.NewValidationError("quantity", fmt.Sprintf("must be between 1 and %d", domain.MaxCartItemQuantity))
	}
	return nil
}

func (uc *cartUseCase) GetLineItems(ctx context.Context, owner domain.Identity) ([]domain.CartItem, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return uc.store.Carts().List(ctx, owner)
}

func (uc *cartUseCase) AddItem(ctx context.Context, owner domain.Identity, productID int64, quantity int) (*domain.CartItem, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	product, err := uc.store.Products().GetByID(ctx, productID)
	if err != nil {
		uc.log.Warnf("Use Case: Cannot add product %d to cart of %s: %v", productID, owner, err)
		return nil, err
	}
	if !product.Orderable() {
		uc.log.Warnf("Use Case: Product %d is not orderable", productID)
		return nil, fmt.Errorf("%w: %s", domain.ErrProductUnavailable, product.Name)
	}

	wanted := quantity
	existing, err := uc.store.Carts().FindByProduct(ctx, owner, productID)
	switch {
	case err == nil:
		wanted += existing.Quantity
	case !errors.Is(err, domain.ErrCartItemNotFound):
		return nil, err
	}
	if wanted > domain.MaxCartItemQuantity {
		return nil, domain.NewValidationError("quantity", fmt.Sprintf("cart may hold at most %d of one product", domain.MaxCartItemQuantity))
	}
	if wanted > product.Stock {
		uc.log.Warnf("Use Case: Insufficient stock for product %d (requested total: %d, available: %d)", productID, wanted, product.Stock)
		return nil, &domain.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.Stock,
			Requested:   wanted,
		}
	}

	item, err := uc.store.Carts().AddOrIncrement(ctx, owner, productID, quantity, product.Price)
	if err != nil {
		return nil, err
	}
	item.ProductName = product.Name
	uc.log.Infof("Use Case: Cart of %s holds %d x product %d", owner, item.Quantity, productID)
	return item, nil
}

func (uc *cartUseCase) UpdateItem(ctx context.Context, owner domain.Identity, itemID int64, quantity int) (*domain.CartItem, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	item, err := uc.store.Carts().GetItem(ctx, owner, itemID)
	if err != nil {
		return nil, err
	}
	product, err := uc.store.Products().GetByID(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if quantity > product.Stock {
		return nil, &domain.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.Stock,
			Requested:   quantity,
		}
	}

	if err := uc.store.Carts().SetQuantity(ctx, owner, itemID, quantity); err != nil {
		return nil, err
	}
	item.Quantity = quantity
	uc.log.Infof("Use Case: Cart item %d of %s set to quantity %d", itemID, owner, quantity)
	return item, nil
}

func (uc *cartUseCase) RemoveItem(ctx context.Context, owner domain.Identity, itemID int64) (bool, error) {
	if err := owner.Validate(); err != nil {
		return false, err
	}
	removed, err := uc.store.Carts().Remove(ctx, owner, itemID)
	if err != nil {
		return false, err
	}
	if !removed {
		uc.log.Debugf("Use Case: Cart item %d of %s was already gone", itemID, owner)
	}
	return removed, nil
}

func (uc *cartUseCase) Clear(ctx context.Context, owner domain.Identity) (int, error) {
	if err := owner.Validate(); err != nil {
		return 0, err
	}
	return uc.store.Carts().Clear(ctx, owner)
}

func (uc *cartUseCase) IsEmpty(ctx context.Context, owner domain.Identity) (bool, error) {
	if err := owner.Validate(); err != nil {
		return false, err
	}
	count, err := uc.store.Carts().Count(ctx, owner)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (uc *cartUseCase) CheckAvailability(ctx context.Context, owner domain.Identity) (*domain.Availability, error) {
	items, err := uc.GetLineItems(ctx, owner)
	if err != nil {
		return nil, err
	}
	products, err := uc.store.Products().GetByIDs(ctx, productIDs(items))
	if err != nil {
		return nil, err
	}
	availability := domain.CheckLineAvailability(items, products)
	if !availability.Available {
		uc.log.Infof("Use Case: %d cart lines of %s are unavailable", len(availability.UnavailableItems), owner)
	}
	return &availability, nil
}

func (uc *cartUseCase) SyncPrices(ctx context.Context, owner domain.Identity) (int, error) {
	items, err := uc.GetLineItems(ctx, owner)
	if err != nil {
		return 0, err
	}
	products, err := uc.store.Products().GetByIDs(ctx, productIDs(items))
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		if item.Price.Sub(product.Price).Abs().LessThanOrEqual(priceEpsilon) {
			continue
		}
		if err := uc.store.Carts().SetPrice(ctx, owner, item.ID, product.Price); err != nil {
			return changed, err
		}
		uc.log.Infof("Use Case: Price of cart item %d changed from %s to %s", item.ID, item.Price.StringFixed(2), product.Price.StringFixed(2))
		changed++
	}
	return changed, nil
}

func (uc *cartUseCase) Summary(ctx context.Context, owner domain.Identity) (*domain.CartSummary, error) {
	items, err := uc.GetLineItems(ctx, owner)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return &domain.CartSummary{
		Items:     items,
		ItemCount: count,
		Subtotal:  uc.engine.Subtotal(pricing.LinesFromCart(items)),
	}, nil
}

// productIDs returns the distinct product ids of items in ascending order.
func productIDs(items []domain.CartItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
