package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s", want, got.StringFixed(2))
}

func TestSubtotalIsOrderIndependent(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	lines := []Line{
		{Price: d("499.99"), Quantity: 3},
		{Price: d("0.10"), Quantity: 7},
		{Price: d("1250.00"), Quantity: 1},
	}
	reversed := []Line{lines[2], lines[1], lines[0]}

	assertMoney(t, "2750.67", e.Subtotal(lines))
	assert.True(t, e.Subtotal(lines).Equal(e.Subtotal(reversed)))
	assertMoney(t, "0", e.Subtotal(nil))
}

func TestDeliveryCost(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	tests := []struct {
		method   domain.DeliveryMethod
		subtotal string
		want     string
	}{
		{domain.DeliveryPickup, "10", "0"},
		{domain.DeliveryPickup, "99999", "0"},
		{domain.DeliveryCourier, "1999.99", "300"},
		{domain.DeliveryCourier, "2000", "0"},
		{domain.DeliveryCourier, "2000.01", "0"},
		{domain.DeliveryPost, "1", "400"},
		{domain.DeliveryPost, "50000", "400"},
		{domain.DeliveryMethod("drone"), "100", "0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.method)+"/"+tt.subtotal, func(t *testing.T) {
			assertMoney(t, tt.want, e.DeliveryCost(tt.method, d(tt.subtotal)))
		})
	}
}

func TestDiscount(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	tests := []struct {
		subtotal string
		want     string
	}{
		{"2999.99", "0"},
		{"3000", "150"},
		{"3000.10", "150.01"},
		{"3333.33", "166.67"},
		{"10000", "500"},
	}
	for _, tt := range tests {
		t.Run(tt.subtotal, func(t *testing.T) {
			assertMoney(t, tt.want, e.Discount(d(tt.subtotal), Customer{}))
		})
	}
}

func TestRoundIsHalfUp(t *testing.T) {
	assertMoney(t, "0.13", Round(d("0.125")))
	assertMoney(t, "2.68", Round(d("2.675")))
	assertMoney(t, "1.00", Round(d("0.995")))
}

func TestQuote(t *testing.T) {
	e := NewEngine(DefaultPolicy())

	t.Run("happy path pickup", func(t *testing.T) {
		q := e.Quote([]Line{{Price: d("500"), Quantity: 2}}, domain.DeliveryPickup, Customer{})
		assertMoney(t, "1000", q.Subtotal)
		assertMoney(t, "0", q.DeliveryCost)
		assertMoney(t, "0", q.Discount)
		assertMoney(t, "1000", q.Total)
	})

	t.Run("courier below threshold", func(t *testing.T) {
		q := e.Quote([]Line{{Price: d("450.50"), Quantity: 2}}, domain.DeliveryCourier, Customer{})
		assertMoney(t, "901", q.Subtotal)
		assertMoney(t, "300", q.DeliveryCost)
		assertMoney(t, "1201", q.Total)
	})

	t.Run("discount and post", func(t *testing.T) {
		q := e.Quote([]Line{{Price: d("1000"), Quantity: 3}}, domain.DeliveryPost, Customer{})
		assertMoney(t, "3000", q.Subtotal)
		assertMoney(t, "400", q.DeliveryCost)
		assertMoney(t, "150", q.Discount)
		assertMoney(t, "3250", q.Total)
	})

	t.Run("total identity", func(t *testing.T) {
		for _, m := range domain.DeliveryMethods {
			q := e.Quote([]Line{{Price: d("1234.56"), Quantity: 3}}, m, Customer{})
			assert.True(t, q.Total.Equal(q.Subtotal.Add(q.DeliveryCost).Sub(q.Discount)))
		}
	})
}

func TestQuoteAll(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	quotes := e.QuoteAll([]Line{{Price: d("700"), Quantity: 2}}, Customer{})

	if assert.Len(t, quotes, 3) {
		assert.Equal(t, domain.DeliveryPickup, quotes[0].DeliveryMethod)
		assertMoney(t, "1400", quotes[0].Total)
		assert.Equal(t, domain.DeliveryCourier, quotes[1].DeliveryMethod)
		assertMoney(t, "1700", quotes[1].Total)
		assert.Equal(t, domain.DeliveryPost, quotes[2].DeliveryMethod)
		assertMoney(t, "1800", quotes[2].Total)
	}
}

func TestCustomPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.CourierCost = d("250")
	p.DiscountRate = d("0.10")
	e := NewEngine(p)

	assertMoney(t, "250", e.DeliveryCost(domain.DeliveryCourier, d("100")))
	assertMoney(t, "300", e.Discount(d("3000"), Customer{}))
}
