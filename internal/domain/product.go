package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsAvailable bool            `json:"is_available"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// Orderable reports whether the product can be put into a cart at all,
// regardless of stock.
func (p *Product) Orderable() bool {
	return p != nil && p.DeletedAt == nil && p.IsAvailable
}

// ProductRepository is the inventory ledger over the product catalog.
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*Product, error)
	// LockByIDs reads the products and holds row locks on them until the
	// surrounding transaction ends.
	LockByIDs(ctx context.Context, ids []int64) (map[int64]*Product, error)
	// Decrement reduces stock only if enough is left; otherwise it returns
	// an *InsufficientStockError and leaves stock untouched.
	Decrement(ctx context.Context, id int64, quantity int) error
	Restore(ctx context.Context, id int64, quantity int) error
}
