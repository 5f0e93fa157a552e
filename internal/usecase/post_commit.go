package usecase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/clients"
	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

// TaskQueue runs work outside the request, after the order is durable.
// *events.Dispatcher implements it.
type TaskQueue interface {
	Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// OrderHooks are the side effects of a placed order: the confirmation
// message and payment initiation. Their failures are logged and never undo
// the order.
type OrderHooks struct {
	queue     TaskQueue
	notifier  clients.Notifier
	payments  clients.PaymentProcessor
	lifecycle domain.OrderLifecycleUseCase
	log       *logrus.Logger
}

func NewOrderHooks(queue TaskQueue, notifier clients.Notifier, payments clients.PaymentProcessor, lifecycle domain.OrderLifecycleUseCase, logger *logrus.Logger) *OrderHooks {
	return &OrderHooks{
		queue:     queue,
		notifier:  notifier,
		payments:  payments,
		lifecycle: lifecycle,
		log:       logger,
	}
}

// orderPlaced schedules the side effects of a committed order. Online
// payments run inline so the returned order carries the payment page.
func (h *OrderHooks) orderPlaced(ctx context.Context, order *domain.Order) {
	if h == nil {
		return
	}
	snapshot := *order
	snapshot.Items = append([]domain.OrderItem(nil), order.Items...)

	if h.notifier != nil && h.queue != nil {
		h.enqueue(ctx, "notify:"+order.OrderNumber, func(ctx context.Context) error {
			return h.notifier.SendOrderConfirmation(ctx, &snapshot)
		})
	}
	if h.payments == nil {
		return
	}

	if order.PaymentMethod == domain.PaymentOnline {
		updated, err := h.processPayment(ctx, &snapshot)
		if err != nil {
			h.log.Warnf("Use Case: Online payment for order %s: %v", order.OrderNumber, err)
		}
		if updated != nil {
			order.PaymentURL = updated.PaymentURL
			order.PaymentStatus = updated.PaymentStatus
			order.UpdatedAt = updated.UpdatedAt
		}
		return
	}
	if h.queue != nil {
		h.enqueue(ctx, "payment:"+order.OrderNumber, func(ctx context.Context) error {
			_, err := h.processPayment(ctx, &snapshot)
			return err
		})
	}
}

func (h *OrderHooks) enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if err := h.queue.Enqueue(ctx, name, fn); err != nil {
		h.log.Warnf("Use Case: Could not schedule %s: %v", name, err)
	}
}

// processPayment asks the processor to take payment and records the outcome
// on the order. It returns the changed order, or nil when nothing changed.
func (h *OrderHooks) processPayment(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	result, err := h.payments.ProcessPayment(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("payment for order %s: %w", order.OrderNumber, err)
	}
	entry := h.log.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"payment":      order.PaymentMethod,
	})

	if result.Success {
		if result.PaymentURL == "" {
			entry.Infof("Use Case: Payment initiated: %s", result.Message)
			return nil, nil
		}
		entry.WithField("payment_url", result.PaymentURL).Infof("Use Case: Payment initiated: %s", result.Message)
		order.PaymentURL = result.PaymentURL
		if h.lifecycle == nil {
			return order, nil
		}
		updated, err := h.lifecycle.AttachPaymentURL(ctx, order.ID, result.PaymentURL)
		if err != nil {
			return order, fmt.Errorf("could not save payment page for order %s: %w", order.OrderNumber, err)
		}
		return updated, nil
	}

	entry.Warnf("Use Case: Payment rejected: %s", result.Message)
	if h.lifecycle == nil {
		return nil, nil
	}
	updated, err := h.lifecycle.MarkPaymentFailed(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("could not record failed payment for order %s: %w", order.OrderNumber, err)
	}
	return updated, nil
}
