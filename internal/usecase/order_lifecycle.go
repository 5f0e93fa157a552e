package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

var _ domain.OrderLifecycleUseCase = (*orderLifecycleUseCase)(nil)

type orderLifecycleUseCase struct {
	store domain.Store
	now   func() time.Time
	log   *logrus.Logger
}

func NewOrderLifecycleUseCase(store domain.Store, logger *logrus.Logger) domain.OrderLifecycleUseCase {
	return newOrderLifecycleUseCase(store, time.Now, logger)
}

func newOrderLifecycleUseCase(store domain.Store, now func() time.Time, logger *logrus.Logger) *orderLifecycleUseCase {
	return &orderLifecycleUseCase{store: store, now: now, log: logger}
}

func (uc *orderLifecycleUseCase) timestamp() *time.Time {
	t := uc.now().UTC()
	return &t
}

// update locks the order, applies change and persists the result in one
// transaction.
func (uc *orderLifecycleUseCase) update(ctx context.Context, orderID int64, change func(tx domain.Repositories, order *domain.Order) error) (*domain.Order, error) {
	var updated *domain.Order
	err := uc.store.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := change(tx, order); err != nil {
			return err
		}
		if err := tx.Orders().UpdateState(ctx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (uc *orderLifecycleUseCase) transition(ctx context.Context, orderID int64, to domain.OrderStatus, apply func(order *domain.Order)) (*domain.Order, error) {
	order, err := uc.update(ctx, orderID, func(_ domain.Repositories, order *domain.Order) error {
		if !order.Status.CanTransitionTo(to) {
			return &domain.InvalidTransitionError{From: order.Status, To: to}
		}
		order.Status = to
		if apply != nil {
			apply(order)
		}
		return nil
	})
	if err != nil {
		uc.log.Warnf("Use Case: Order %d could not move to %s: %v", orderID, to, err)
		return nil, err
	}
	uc.log.Infof("Use Case: Order %s moved to %s", order.OrderNumber, to)
	return order, nil
}

func (uc *orderLifecycleUseCase) CancelOrder(ctx context.Context, orderID int64, requester domain.Identity, reason string) (*domain.Order, error) {
	if err := requester.Validate(); err != nil {
		return nil, err
	}
	order, err := uc.update(ctx, orderID, func(tx domain.Repositories, order *domain.Order) error {
		if !order.OwnedBy(requester) {
			return domain.ErrForbidden
		}
		if !order.Status.IsCancellable() {
			return &domain.NotCancellableError{Status: order.Status}
		}
		// Lock and restore in ascending product id order, the same order
		// checkout locks in.
		items := append([]domain.OrderItem(nil), order.Items...)
		sort.SliceStable(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
		if _, err := tx.Products().LockByIDs(ctx, orderProductIDs(items)); err != nil {
			return err
		}
		for _, item := range items {
			err := tx.Products().Restore(ctx, item.ProductID, item.Quantity)
			if errors.Is(err, domain.ErrProductNotFound) {
				uc.log.Warnf("Use Case: Product %d of order %s no longer exists, stock not restored", item.ProductID, order.OrderNumber)
				continue
			}
			if err != nil {
				return err
			}
		}
		order.Status = domain.StatusCancelled
		order.CancelledAt = uc.timestamp()
		order.CancellationReason = reason
		return nil
	})
	if err != nil {
		uc.log.Warnf("Use Case: Cancellation of order %d by %s failed: %v", orderID, requester, err)
		return nil, err
	}
	uc.log.Infof("Use Case: Order %s cancelled by %s, %d lines returned to stock", order.OrderNumber, requester, len(order.Items))
	return order, nil
}

// orderProductIDs returns the distinct product ids of sorted items.
func orderProductIDs(items []domain.OrderItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if n := len(ids); n == 0 || ids[n-1] != item.ProductID {
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

func (uc *orderLifecycleUseCase) MarkAsPaid(ctx context.Context, orderID int64) (*domain.Order, error) {
	return uc.transition(ctx, orderID, domain.StatusPaid, func(order *domain.Order) {
		order.PaymentStatus = domain.PaymentPaid
		order.PaidAt = uc.timestamp()
	})
}

func (uc *orderLifecycleUseCase) MarkPaymentFailed(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := uc.update(ctx, orderID, func(_ domain.Repositories, order *domain.Order) error {
		if order.PaymentStatus == domain.PaymentPaid || order.Status == domain.StatusCancelled {
			return domain.ErrPaymentSettled
		}
		order.PaymentStatus = domain.PaymentFailed
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Warnf("Use Case: Payment of order %s marked as failed", order.OrderNumber)
	return order, nil
}

func (uc *orderLifecycleUseCase) StartProcessing(ctx context.Context, orderID int64) (*domain.Order, error) {
	return uc.transition(ctx, orderID, domain.StatusProcessing, nil)
}

func (uc *orderLifecycleUseCase) MarkShipped(ctx context.Context, orderID int64) (*domain.Order, error) {
	return uc.transition(ctx, orderID, domain.StatusShipped, func(order *domain.Order) {
		order.ShippedAt = uc.timestamp()
	})
}

func (uc *orderLifecycleUseCase) MarkDelivered(ctx context.Context, orderID int64) (*domain.Order, error) {
	return uc.transition(ctx, orderID, domain.StatusDelivered, func(order *domain.Order) {
		order.DeliveredAt = uc.timestamp()
	})
}

func (uc *orderLifecycleUseCase) SetAdminNotes(ctx context.Context, orderID int64, notes string) (*domain.Order, error) {
	return uc.update(ctx, orderID, func(_ domain.Repositories, order *domain.Order) error {
		if len(notes) > 2000 {
			return domain.NewValidationError("admin_notes", "must be at most 2000 characters")
		}
		order.AdminNotes = notes
		return nil
	})
}

func (uc *orderLifecycleUseCase) AttachPaymentURL(ctx context.Context, orderID int64, paymentURL string) (*domain.Order, error) {
	order, err := uc.update(ctx, orderID, func(_ domain.Repositories, order *domain.Order) error {
		if order.PaymentStatus == domain.PaymentPaid || order.Status == domain.StatusCancelled {
			return domain.ErrPaymentSettled
		}
		order.PaymentURL = paymentURL
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Infof("Use Case: Payment page attached to order %s", order.OrderNumber)
	return order, nil
}
