// Package pricing computes cart and order money fields. Every function is
// pure and rounds half-up to two decimal places at each step, so a quote
// shown at checkout is exactly what the order stores.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

const moneyPlaces = 2

// Policy holds the delivery and discount thresholds.
type Policy struct {
	FreeCourierThreshold decimal.Decimal
	CourierCost          decimal.Decimal
	PostCost             decimal.Decimal
	DiscountThreshold    decimal.Decimal
	DiscountRate         decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		FreeCourierThreshold: decimal.NewFromInt(2000),
		CourierCost:          decimal.NewFromInt(300),
		PostCost:             decimal.NewFromInt(400),
		DiscountThreshold:    decimal.NewFromInt(3000),
		DiscountRate:         decimal.RequireFromString("0.05"),
	}
}

// Line is one priced quantity.
type Line struct {
	Price    decimal.Decimal
	Quantity int
}

// Customer is the discount context. The base rule ignores it; promo codes
// and loyalty tiers hang off it.
type Customer struct {
	Identity  domain.Identity
	PromoCode string
}

type Quote = domain.Quote

type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return Round(price.Mul(decimal.NewFromInt(int64(quantity))))
}

func (e *Engine) Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineTotal(l.Price, l.Quantity))
	}
	return Round(sum)
}

// DeliveryCost falls back to zero for an unknown method.
func (e *Engine) DeliveryCost(method domain.DeliveryMethod, subtotal decimal.Decimal) decimal.Decimal {
	switch method {
	case domain.DeliveryPickup:
		return decimal.Zero
	case domain.DeliveryCourier:
		if subtotal.GreaterThanOrEqual(e.policy.FreeCourierThreshold) {
			return decimal.Zero
		}
		return Round(e.policy.CourierCost)
	case domain.DeliveryPost:
		return Round(e.policy.PostCost)
	default:
		return decimal.Zero
	}
}

func (e *Engine) Discount(subtotal decimal.Decimal, _ Customer) decimal.Decimal {
	if subtotal.LessThan(e.policy.DiscountThreshold) {
		return decimal.Zero
	}
	return Round(subtotal.Mul(e.policy.DiscountRate))
}

func (e *Engine) Total(subtotal, deliveryCost, discount decimal.Decimal) decimal.Decimal {
	return Round(subtotal.Add(deliveryCost).Sub(discount))
}

func (e *Engine) Quote(lines []Line, method domain.DeliveryMethod, customer Customer) Quote {
	subtotal := e.Subtotal(lines)
	delivery := e.DeliveryCost(method, subtotal)
	discount := e.Discount(subtotal, customer)
	return Quote{
		DeliveryMethod: method,
		Subtotal:       subtotal,
		DeliveryCost:   delivery,
		Discount:       discount,
		Total:          e.Total(subtotal, delivery, discount),
	}
}

// QuoteAll prices the lines for every delivery method, in the order of
// domain.DeliveryMethods.
func (e *Engine) QuoteAll(lines []Line, customer Customer) []Quote {
	quotes := make([]Quote, 0, len(domain.DeliveryMethods))
	for _, m := range domain.DeliveryMethods {
		quotes = append(quotes, e.Quote(lines, m, customer))
	}
	return quotes
}

func LinesFromCart(items []domain.CartItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{Price: item.Price, Quantity: item.Quantity})
	}
	return lines
}
