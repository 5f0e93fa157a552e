package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrProductNotFound     = errors.New("product not found")
	ErrProductUnavailable  = errors.New("product is not available")
	ErrCartItemNotFound    = errors.New("cart item not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrForbidden           = errors.New("order belongs to another customer")
	ErrInvalidIdentity     = errors.New("invalid identity")
	ErrOrderNumberConflict = errors.New("order number already taken")
	ErrPaymentSettled      = errors.New("payment is already settled")
)

type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = fmt.Sprintf("product %d", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for %s: only %d in stock, %d requested", name, e.Available, e.Requested)
}

type ItemsUnavailableError struct {
	Items []UnavailableItem
}

func (e *ItemsUnavailableError) Error() string {
	names := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		if item.ProductName != "" {
			names = append(names, item.ProductName)
		} else {
			names = append(names, fmt.Sprintf("product %d", item.ProductID))
		}
	}
	return "some items are unavailable: " + strings.Join(names, ", ")
}

type NotCancellableError struct {
	Status OrderStatus
}

func (e *NotCancellableError) Error() string {
	return fmt.Sprintf("order cannot be cancelled: it is already %s", e.Status)
}

type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// ValidationError carries per-field messages.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
