package domain

import "github.com/shopspring/decimal"

// Quote is the priced breakdown of a cart for one delivery method.
type Quote struct {
	DeliveryMethod DeliveryMethod  `json:"delivery_method"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryCost   decimal.Decimal `json:"delivery_cost"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
}
