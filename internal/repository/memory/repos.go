package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

type productRepo struct{ base }

func (r *productRepo) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	var out *domain.Product
	err := r.with(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrProductNotFound
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

func (r *productRepo) GetByIDs(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	out := make(map[int64]*domain.Product, len(ids))
	err := r.with(func(st *state) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				cp := *p
				out[id] = &cp
			}
		}
		return nil
	})
	return out, err
}

// LockByIDs is a plain read: transactions are already serialized.
func (r *productRepo) LockByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	return r.GetByIDs(ctx, ids)
}

func (r *productRepo) Decrement(_ context.Context, id int64, quantity int) error {
	return r.with(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrProductNotFound
		}
		if p.Stock < quantity {
			return &domain.InsufficientStockError{ProductID: id, ProductName: p.Name, Available: p.Stock, Requested: quantity}
		}
		p.Stock -= quantity
		return nil
	})
}

func (r *productRepo) Restore(_ context.Context, id int64, quantity int) error {
	return r.with(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrProductNotFound
		}
		p.Stock += quantity
		return nil
	})
}

type cartRepo struct{ base }

func ownedBy(item *domain.CartItem, owner domain.Identity) bool {
	return item.Owner.Key() == owner.Key()
}

func (r *cartRepo) withName(st *state, item domain.CartItem) domain.CartItem {
	if p, ok := st.products[item.ProductID]; ok {
		item.ProductName = p.Name
	}
	return item
}

func (r *cartRepo) List(_ context.Context, owner domain.Identity) ([]domain.CartItem, error) {
	items := []domain.CartItem{}
	err := r.with(func(st *state) error {
		for _, item := range st.cartItems {
			if ownedBy(item, owner) {
				items = append(items, r.withName(st, *item))
			}
		}
		return nil
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, err
}

// ListForUpdate needs no extra locking; a transaction already holds the
// store exclusively.
func (r *cartRepo) ListForUpdate(ctx context.Context, owner domain.Identity) ([]domain.CartItem, error) {
	return r.List(ctx, owner)
}

func (r *cartRepo) GetItem(_ context.Context, owner domain.Identity, itemID int64) (*domain.CartItem, error) {
	var out *domain.CartItem
	err := r.with(func(st *state) error {
		item, ok := st.cartItems[itemID]
		if !ok || !ownedBy(item, owner) {
			return domain.ErrCartItemNotFound
		}
		cp := r.withName(st, *item)
		out = &cp
		return nil
	})
	return out, err
}

func (r *cartRepo) FindByProduct(_ context.Context, owner domain.Identity, productID int64) (*domain.CartItem, error) {
	var out *domain.CartItem
	err := r.with(func(st *state) error {
		for _, item := range st.cartItems {
			if ownedBy(item, owner) && item.ProductID == productID {
				cp := r.withName(st, *item)
				out = &cp
				return nil
			}
		}
		return domain.ErrCartItemNotFound
	})
	return out, err
}

func (r *cartRepo) AddOrIncrement(_ context.Context, owner domain.Identity, productID int64, quantity int, price decimal.Decimal) (*domain.CartItem, error) {
	var out *domain.CartItem
	err := r.with(func(st *state) error {
		now := r.clock()
		for _, item := range st.cartItems {
			if ownedBy(item, owner) && item.ProductID == productID {
				if item.Quantity+quantity > domain.MaxCartItemQuantity {
					return domain.NewValidationError("quantity", fmt.Sprintf("must be at most %d", domain.MaxCartItemQuantity))
				}
				item.Quantity += quantity
				item.UpdatedAt = now
				cp := r.withName(st, *item)
				out = &cp
				return nil
			}
		}
		st.nextCartItemID++
		item := &domain.CartItem{
			ID:        st.nextCartItemID,
			Owner:     owner,
			ProductID: productID,
			Quantity:  quantity,
			Price:     price,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.cartItems[item.ID] = item
		cp := r.withName(st, *item)
		out = &cp
		return nil
	})
	return out, err
}

func (r *cartRepo) SetQuantity(_ context.Context, owner domain.Identity, itemID int64, quantity int) error {
	return r.with(func(st *state) error {
		item, ok := st.cartItems[itemID]
		if !ok || !ownedBy(item, owner) {
			return domain.ErrCartItemNotFound
		}
		item.Quantity = quantity
		item.UpdatedAt = r.clock()
		return nil
	})
}

func (r *cartRepo) SetPrice(_ context.Context, owner domain.Identity, itemID int64, price decimal.Decimal) error {
	return r.with(func(st *state) error {
		item, ok := st.cartItems[itemID]
		if !ok || !ownedBy(item, owner) {
			return domain.ErrCartItemNotFound
		}
		item.Price = price
		item.UpdatedAt = r.clock()
		return nil
	})
}

func (r *cartRepo) Remove(_ context.Context, owner domain.Identity, itemID int64) (bool, error) {
	removed := false
	err := r.with(func(st *state) error {
		item, ok := st.cartItems[itemID]
		if ok && ownedBy(item, owner) {
			delete(st.cartItems, itemID)
			removed = true
		}
		return nil
	})
	return removed, err
}

func (r *cartRepo) Clear(_ context.Context, owner domain.Identity) (int, error) {
	count := 0
	err := r.with(func(st *state) error {
		for id, item := range st.cartItems {
			if ownedBy(item, owner) {
				delete(st.cartItems, id)
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *cartRepo) RemoveLines(_ context.Context, owner domain.Identity, itemIDs []int64) (int, error) {
	count := 0
	err := r.with(func(st *state) error {
		for _, id := range itemIDs {
			if item, ok := st.cartItems[id]; ok && ownedBy(item, owner) {
				delete(st.cartItems, id)
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *cartRepo) Count(_ context.Context, owner domain.Identity) (int, error) {
	count := 0
	err := r.with(func(st *state) error {
		for _, item := range st.cartItems {
			if ownedBy(item, owner) {
				count++
			}
		}
		return nil
	})
	return count, err
}

type orderRepo struct{ base }

func (r *orderRepo) Create(_ context.Context, order *domain.Order) error {
	return r.with(func(st *state) error {
		for _, existing := range st.orders {
			if existing.OrderNumber == order.OrderNumber {
				return fmt.Errorf("%w: %s", domain.ErrOrderNumberConflict, order.OrderNumber)
			}
		}
		now := r.clock()
		st.nextOrderID++
		order.ID = st.nextOrderID
		order.CreatedAt = now
		order.UpdatedAt = now
		for i := range order.Items {
			st.nextOrderItemID++
			order.Items[i].ID = st.nextOrderItemID
			order.Items[i].OrderID = order.ID
		}
		st.orders[order.ID] = copyOrder(order)
		return nil
	})
}

func (r *orderRepo) LockNumbering(context.Context, int) error { return nil }

func (r *orderRepo) LastSequence(_ context.Context, year int) (int, error) {
	prefix := fmt.Sprintf("ORD-%d-", year)
	last := 0
	err := r.with(func(st *state) error {
		for _, o := range st.orders {
			if !strings.HasPrefix(o.OrderNumber, prefix) {
				continue
			}
			seq, err := strconv.Atoi(strings.TrimPrefix(o.OrderNumber, prefix))
			if err != nil {
				continue
			}
			if seq > last {
				last = seq
			}
		}
		return nil
	})
	return last, err
}

func (r *orderRepo) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	var out *domain.Order
	err := r.with(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		out = copyOrder(o)
		return nil
	})
	return out, err
}

func (r *orderRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *orderRepo) ListByOwner(_ context.Context, owner domain.Identity, limit, offset int) ([]domain.Order, error) {
	orders := []domain.Order{}
	err := r.with(func(st *state) error {
		for _, o := range st.orders {
			if o.OwnedBy(owner) {
				orders = append(orders, *copyOrder(o))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	if offset >= len(orders) {
		return []domain.Order{}, nil
	}
	orders = orders[offset:]
	if limit > 0 && limit < len(orders) {
		orders = orders[:limit]
	}
	return orders, nil
}

func (r *orderRepo) UpdateState(_ context.Context, order *domain.Order) error {
	return r.with(func(st *state) error {
		o, ok := st.orders[order.ID]
		if !ok {
			return domain.ErrOrderNotFound
		}
		o.Status = order.Status
		o.PaymentStatus = order.PaymentStatus
		o.PaymentURL = order.PaymentURL
		o.AdminNotes = order.AdminNotes
		o.CancellationReason = order.CancellationReason
		o.PaidAt = order.PaidAt
		o.ShippedAt = order.ShippedAt
		o.DeliveredAt = order.DeliveredAt
		o.CancelledAt = order.CancelledAt
		o.UpdatedAt = r.clock()
		order.UpdatedAt = o.UpdatedAt
		return nil
	})
}
