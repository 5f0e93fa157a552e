package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusPaid       OrderStatus = "paid"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusPaid, StatusCancelled},
	StatusProcessing: {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func IsValidStatus(status OrderStatus) bool {
	switch status {
	case StatusPending, StatusProcessing, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsCancellable is false once the order has physically left the shop.
func (s OrderStatus) IsCancellable() bool {
	return s.CanTransitionTo(StatusCancelled)
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type DeliveryMethod string

const (
	DeliveryPickup  DeliveryMethod = "pickup"
	DeliveryCourier DeliveryMethod = "courier"
	DeliveryPost    DeliveryMethod = "post"
)

var DeliveryMethods = []DeliveryMethod{DeliveryPickup, DeliveryCourier, DeliveryPost}

func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryPickup, DeliveryCourier, DeliveryPost:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentOnline PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentOnline:
		return true
	}
	return false
}

type Order struct {
	ID          int64   `json:"id"`
	OrderNumber string  `json:"order_number"`
	UserID      *int64  `json:"user_id,omitempty"`
	SessionID   *string `json:"-"`

	CustomerName    string         `json:"customer_name"`
	CustomerEmail   string         `json:"customer_email"`
	CustomerPhone   string         `json:"customer_phone"`
	DeliveryAddress string         `json:"delivery_address"`
	DeliveryMethod  DeliveryMethod `json:"delivery_method"`
	PaymentMethod   PaymentMethod  `json:"payment_method"`

	Subtotal     decimal.Decimal `json:"subtotal"`
	DeliveryCost decimal.Decimal `json:"delivery_cost"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`

	Status             OrderStatus   `json:"status"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	PaymentURL         string        `json:"payment_url,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	AdminNotes         string        `json:"admin_notes,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Items []OrderItem `json:"items"`
}

func (o *Order) OwnedBy(id Identity) bool {
	return id.Matches(o.UserID, o.SessionID)
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

type OrderRepository interface {
	// Create inserts the order and its items and fills in generated ids and
	// timestamps. A clash on the order number yields ErrOrderNumberConflict.
	Create(ctx context.Context, order *Order) error
	// LockNumbering serializes order number allocation for a year until the
	// surrounding transaction ends.
	LockNumbering(ctx context.Context, year int) error
	// LastSequence returns the highest sequence already used in year, or 0.
	LastSequence(ctx context.Context, year int) (int, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*Order, error)
	ListByOwner(ctx context.Context, owner Identity, limit, offset int) ([]Order, error)
	// UpdateState persists status, payment status and URL, notes and
	// lifecycle timestamps. Money fields and items are never rewritten.
	UpdateState(ctx context.Context, order *Order) error
}
