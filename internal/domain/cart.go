package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const MaxCartItemQuantity = 100

type CartItem struct {
	ID          int64           `json:"id"`
	Owner       Identity        `json:"-"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (c CartItem) LineTotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Quantity))).Round(2)
}

type CartSummary struct {
	Items     []CartItem      `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type UnavailableReason string

const (
	ReasonNotFound          UnavailableReason = "not_found"
	ReasonUnavailable       UnavailableReason = "unavailable"
	ReasonInsufficientStock UnavailableReason = "insufficient_stock"
)

type UnavailableItem struct {
	CartItemID  int64             `json:"cart_item_id,omitempty"`
	ProductID   int64             `json:"product_id"`
	ProductName string            `json:"product_name"`
	Requested   int               `json:"requested"`
	Available   int               `json:"available"`
	Reason      UnavailableReason `json:"reason"`
}

type Availability struct {
	Available        bool              `json:"available"`
	UnavailableItems []UnavailableItem `json:"unavailable_items"`
}

// CheckLineAvailability compares each cart line against the catalog snapshot
// in products. Lines whose product is missing from the map are reported as
// not found.
func CheckLineAvailability(items []CartItem, products map[int64]*Product) Availability {
	result := Availability{Available: true, UnavailableItems: []UnavailableItem{}}
	for _, item := range items {
		product := products[item.ProductID]
		entry := UnavailableItem{
			CartItemID:  item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Requested:   item.Quantity,
		}
		switch {
		case product == nil:
			entry.Reason = ReasonNotFound
		case !product.Orderable():
			entry.ProductName = product.Name
			entry.Available = product.Stock
			entry.Reason = ReasonUnavailable
		case product.Stock < item.Quantity:
			entry.ProductName = product.Name
			entry.Available = product.Stock
			entry.Reason = ReasonInsufficientStock
		default:
			continue
		}
		result.Available = false
		result.UnavailableItems = append(result.UnavailableItems, entry)
	}
	return result
}

type CartRepository interface {
	// List returns the owner's lines in insertion order.
	List(ctx context.Context, owner Identity) ([]CartItem, error)
	// ListForUpdate is List holding row locks on the returned lines until
	// the surrounding transaction ends.
	ListForUpdate(ctx context.Context, owner Identity) ([]CartItem, error)
	GetItem(ctx context.Context, owner Identity, itemID int64) (*CartItem, error)
	// FindByProduct returns ErrCartItemNotFound when the owner has no line
	// for the product.
	FindByProduct(ctx context.Context, owner Identity, productID int64) (*CartItem, error)
	// AddOrIncrement inserts a line capturing price, or adds quantity to the
	// existing line for the same product.
	AddOrIncrement(ctx context.Context, owner Identity, productID int64, quantity int, price decimal.Decimal) (*CartItem, error)
	SetQuantity(ctx context.Context, owner Identity, itemID int64, quantity int) error
	SetPrice(ctx context.Context, owner Identity, itemID int64, price decimal.Decimal) error
	Remove(ctx context.Context, owner Identity, itemID int64) (bool, error)
	Clear(ctx context.Context, owner Identity) (int, error)
	// RemoveLines deletes only the owner's lines with the given ids.
	RemoveLines(ctx context.Context, owner Identity, itemIDs []int64) (int, error)
	Count(ctx context.Context, owner Identity) (int, error)
}
