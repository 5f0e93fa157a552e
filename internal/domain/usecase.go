package domain

import "context"

type CartUseCase interface {
	GetLineItems(ctx context.Context, owner Identity) ([]CartItem, error)
	AddItem(ctx context.Context, owner Identity, productID int64, quantity int) (*CartItem, error)
	UpdateItem(ctx context.Context, owner Identity, itemID int64, quantity int) (*CartItem, error)
	RemoveItem(ctx context.Context, owner Identity, itemID int64) (bool, error)
	Clear(ctx context.Context, owner Identity) (int, error)
	IsEmpty(ctx context.Context, owner Identity) (bool, error)
	CheckAvailability(ctx context.Context, owner Identity) (*Availability, error)
	SyncPrices(ctx context.Context, owner Identity) (int, error)
	Summary(ctx context.Context, owner Identity) (*CartSummary, error)
}

// ReorderResult reports what a reorder put back into the cart.
type ReorderResult struct {
	AddedCount              int      `json:"added_count"`
	UnavailableProductNames []string `json:"unavailable_product_names"`
}

type OrderUseCase interface {
	QuoteCart(ctx context.Context, owner Identity, method DeliveryMethod) (*Quote, error)
	QuoteAllMethods(ctx context.Context, owner Identity) ([]Quote, error)
	Checkout(ctx context.Context, owner Identity, data CheckoutData) (*Order, error)
	GetOrder(ctx context.Context, orderID int64, requester Identity) (*Order, error)
	ListOrders(ctx context.Context, requester Identity, limit, offset int) ([]Order, error)
	Reorder(ctx context.Context, orderID int64, requester Identity) (*ReorderResult, error)
}

// OrderLifecycleUseCase moves placed orders through their status machine.
type OrderLifecycleUseCase interface {
	CancelOrder(ctx context.Context, orderID int64, requester Identity, reason string) (*Order, error)
	MarkAsPaid(ctx context.Context, orderID int64) (*Order, error)
	MarkPaymentFailed(ctx context.Context, orderID int64) (*Order, error)
	StartProcessing(ctx context.Context, orderID int64) (*Order, error)
	MarkShipped(ctx context.Context, orderID int64) (*Order, error)
	MarkDelivered(ctx context.Context, orderID int64) (*Order, error)
	SetAdminNotes(ctx context.Context, orderID int64, notes string) (*Order, error)
	// AttachPaymentURL records where the customer completes an online
	// payment.
	AttachPaymentURL(ctx context.Context, orderID int64, paymentURL string) (*Order, error)
}
