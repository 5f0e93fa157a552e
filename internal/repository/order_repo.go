package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
	"github.com/Rubin-11/coffee-tea-shop/pkg/db"
)

// numberingLockClass namespaces the advisory lock taken per year.
const numberingLockClass = 7301

const orderNumberConstraint = "orders_order_number_key"

type postgresOrderRepository struct {
	q   db.Querier
	log *logrus.Logger
}

func NewPostgresOrderRepository(q db.Querier, logger *logrus.Logger) domain.OrderRepository {
	return &postgresOrderRepository{
		q:   q,
		log: logger,
	}
}

const orderColumns = `
        id, order_number, user_id, session_id,
        customer_name, customer_email, customer_phone, delivery_address,
        delivery_method, payment_method,
        subtotal, delivery_cost, discount, total,
        status, payment_status, payment_url, notes, admin_notes, cancellation_reason,
        paid_at, shipped_at, delivered_at, cancelled_at, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	var userID sql.NullInt64
	var sessionID sql.NullString
	var paidAt, shippedAt, deliveredAt, cancelAt sql.NullTime
	if err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&userID,
		&sessionID,
		&order.CustomerName,
		&order.CustomerEmail,
		&order.CustomerPhone,
		&order.DeliveryAddress,
		&order.DeliveryMethod,
		&order.PaymentMethod,
		&order.Subtotal,
		&order.DeliveryCost,
		&order.Discount,
		&order.Total,
		&order.Status,
		&order.PaymentStatus,
		&order.PaymentURL,
		&order.Notes,
		&order.AdminNotes,
		&order.CancellationReason,
		&paidAt,
		&shippedAt,
		&deliveredAt,
		&cancelAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if userID.Valid {
		id := userID.Int64
		order.UserID = &id
	}
	if sessionID.Valid {
		token := sessionID.String
		order.SessionID = &token
	}
	order.PaidAt = nullTime(paidAt)
	order.ShippedAt = nullTime(shippedAt)
	order.DeliveredAt = nullTime(deliveredAt)
	order.CancelledAt = nullTime(cancelAt)
	return order, nil
}

func (r *postgresOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	var userID sql.NullInt64
	if order.UserID != nil {
		userID = sql.NullInt64{Int64: *order.UserID, Valid: true}
	}
	var sessionID sql.NullString
	if order.SessionID != nil {
		sessionID = sql.NullString{String: *order.SessionID, Valid: true}
	}

	orderQuery := `
        INSERT INTO orders (
            order_number, user_id, session_id,
            customer_name, customer_email, customer_phone, delivery_address,
            delivery_method, payment_method,
            subtotal, delivery_cost, discount, total,
            status, payment_status, notes
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        RETURNING id, created_at, updated_at`
	err := r.q.QueryRowContext(ctx, orderQuery,
		order.OrderNumber, userID, sessionID,
		order.CustomerName, order.CustomerEmail, order.CustomerPhone, order.DeliveryAddress,
		order.DeliveryMethod, order.PaymentMethod,
		order.Subtotal, order.DeliveryCost, order.Discount, order.Total,
		order.Status, order.PaymentStatus, order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch {
			case pqErr.Code == "23505" && pqErr.Constraint == orderNumberConstraint:
				r.log.Warnf("Repository: Order number %s already taken", order.OrderNumber)
				return fmt.Errorf("%w: %s", domain.ErrOrderNumberConflict, order.OrderNumber)
			case pqErr.Code == "23514":
				r.log.Errorf("Repository: Order %s violates %s: %s", order.OrderNumber, pqErr.Constraint, pqErr.Message)
				return fmt.Errorf("order data constraint violation: %s", pqErr.Message)
			}
		}
		r.log.Errorf("Repository: Failed to insert order %s: %v", order.OrderNumber, err)
		return fmt.Errorf("could not create order entry: %w", err)
	}
	r.log.Infof("Repository: Order entry created with ID %d, number %s", order.ID, order.OrderNumber)

	itemQuery := `
        INSERT INTO order_items (order_id, product_id, product_name, quantity, price, total)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id`
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err = r.q.QueryRowContext(ctx, itemQuery,
			order.ID, item.ProductID, item.ProductName, item.Quantity, item.Price, item.Total,
		).Scan(&item.ID)
		if err != nil {
			r.log.Errorf("Repository: Failed to insert order item (product_id: %d, quantity: %d) for order %d: %v", item.ProductID, item.Quantity, order.ID, err)
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
				return fmt.Errorf("invalid item data (product_id: %d): %s", item.ProductID, pqErr.Message)
			}
			return fmt.Errorf("could not create order item (product_id: %d): %w", item.ProductID, err)
		}
	}

	r.log.Infof("Repository: Order %s stored with %d items", order.OrderNumber, len(order.Items))
	return nil
}

func (r *postgresOrderRepository) LockNumbering(ctx context.Context, year int) error {
	if _, err := r.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, numberingLockClass, year); err != nil {
		r.log.Errorf("Repository: Failed to take numbering lock for %d: %v", year, err)
		return fmt.Errorf("could not lock order numbering: %w", err)
	}
	return nil
}

func (r *postgresOrderRepository) LastSequence(ctx context.Context, year int) (int, error) {
	prefix := fmt.Sprintf("ORD-%d-", year)
	query := `
        SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM $2) AS INTEGER)), 0)
        FROM orders
        WHERE order_number LIKE $1`
	var last int
	if err := r.q.QueryRowContext(ctx, query, prefix+"%", len(prefix)+1).Scan(&last); err != nil {
		r.log.Errorf("Repository: Failed to read last order sequence for %d: %v", year, err)
		return 0, fmt.Errorf("could not read last order number: %w", err)
	}
	return last, nil
}

func (r *postgresOrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return r.get(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *postgresOrderRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.get(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresOrderRepository) get(ctx context.Context, query string, id int64) (*domain.Order, error) {
	order, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Repository: Order with ID %d not found", id)
			return nil, domain.ErrOrderNotFound
		}
		r.log.Errorf("Repository: Failed to get order by ID %d: %v", id, err)
		return nil, fmt.Errorf("could not retrieve order: %w", err)
	}

	items, err := r.getOrderItems(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	r.log.Debugf("Repository: Order %d retrieved with %d items", order.ID, len(order.Items))
	return order, nil
}

func (r *postgresOrderRepository) getOrderItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	itemsQuery := `
        SELECT id, order_id, product_id, product_name, quantity, price, total
        FROM order_items
        WHERE order_id = ANY($1)
        ORDER BY id`
	rows, err := r.q.QueryContext(ctx, itemsQuery, pq.Array(orderIDs))
	if err != nil {
		r.log.Errorf("Repository: Failed to query order items for orders %v: %v", orderIDs, err)
		return nil, fmt.Errorf("could not retrieve order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price, &item.Total); err != nil {
			r.log.Errorf("Repository: Failed to scan order item row: %v", err)
			return nil, fmt.Errorf("error scanning order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	if err = rows.Err(); err != nil {
		r.log.Errorf("Repository: Error during order items iteration: %v", err)
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return items, nil
}

func (r *postgresOrderRepository) ListByOwner(ctx context.Context, owner domain.Identity, limit, offset int) ([]domain.Order, error) {
	column, value, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT` + orderColumns + fmt.Sprintf(`
        FROM orders
        WHERE %s = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`, column)
	rows, err := r.q.QueryContext(ctx, query, value, limit, offset)
	if err != nil {
		r.log.Errorf("Repository: Failed to list orders of %s: %v", owner, err)
		return nil, fmt.Errorf("could not list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	ids := []int64{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.log.Errorf("Repository: Failed to scan order row for %s: %v", owner, err)
			return nil, fmt.Errorf("error scanning order: %w", err)
		}
		orders = append(orders, *order)
		ids = append(ids, order.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.getOrderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []domain.OrderItem{}
		}
	}
	return orders, nil
}

func (r *postgresOrderRepository) UpdateState(ctx context.Context, order *domain.Order) error {
	query := `
        UPDATE orders
        SET status = $1, payment_status = $2, admin_notes = $3, cancellation_reason = $4,
            paid_at = $5, shipped_at = $6, delivered_at = $7, cancelled_at = $8,
            payment_url = $9, updated_at = NOW()
        WHERE id = $10
        RETURNING updated_at`
	err := r.q.QueryRowContext(ctx, query,
		order.Status, order.PaymentStatus, order.AdminNotes, order.CancellationReason,
		order.PaidAt, order.ShippedAt, order.DeliveredAt, order.CancelledAt,
		order.PaymentURL, order.ID,
	).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Repository: Order with ID %d not found for status update", order.ID)
			return domain.ErrOrderNotFound
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
			r.log.Warnf("Repository: Invalid state for order ID %d: %s", order.ID, pqErr.Message)
			return fmt.Errorf("invalid order state: %s", pqErr.Message)
		}
		r.log.Errorf("Repository: Failed to update order %d: %v", order.ID, err)
		return fmt.Errorf("could not update order status: %w", err)
	}
	r.log.Infof("Repository: Order %d is now %s / %s", order.ID, order.Status, order.PaymentStatus)
	return nil
}
