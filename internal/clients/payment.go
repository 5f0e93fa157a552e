package clients

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

type PaymentResult struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"payment_url,omitempty"`
	Message    string `json:"message"`
}

type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, order *domain.Order) (*PaymentResult, error)
}

type simulatedPaymentProcessor struct {
	baseURL string
	log     *logrus.Logger
}

// NewSimulatedPaymentProcessor accepts cash and card payments as-is and
// answers online payments with a redirect into the hosted payment page.
func NewSimulatedPaymentProcessor(baseURL string, logger *logrus.Logger) PaymentProcessor {
	return &simulatedPaymentProcessor{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logger,
	}
}

func (p *simulatedPaymentProcessor) ProcessPayment(ctx context.Context, order *domain.Order) (*PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.log.Infof("PaymentProcessor: Processing %s payment for order %s (total %s)", order.PaymentMethod, order.OrderNumber, order.Total.StringFixed(2))

	switch order.PaymentMethod {
	case domain.PaymentCash:
		return &PaymentResult{Success: true, Message: "payment on receipt"}, nil
	case domain.PaymentCard:
		return &PaymentResult{Success: true, Message: "card payment on receipt"}, nil
	case domain.PaymentOnline:
		token := uuid.NewString()
		paymentURL := fmt.Sprintf("%s/%s?token=%s", p.baseURL, url.PathEscape(order.OrderNumber), url.QueryEscape(token))
		p.log.Infof("PaymentProcessor: Online payment for order %s awaits customer at %s", order.OrderNumber, paymentURL)
		return &PaymentResult{Success: true, PaymentURL: paymentURL, Message: "redirect to payment page"}, nil
	default:
		p.log.Warnf("PaymentProcessor: Unsupported payment method %q for order %s", order.PaymentMethod, order.OrderNumber)
		return &PaymentResult{Success: false, Message: fmt.Sprintf("unsupported payment method %q", order.PaymentMethod)}, nil
	}
}
