package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
	"github.com/Rubin-11/coffee-tea-shop/pkg/db"
)

type postgresCartRepository struct {
	q   db.Querier
	log *logrus.Logger
}

func NewPostgresCartRepository(q db.Querier, logger *logrus.Logger) domain.CartRepository {
	return &postgresCartRepository{
		q:   q,
		log: logger,
	}
}

// ownerColumn picks the column that identifies the owner's rows.
func ownerColumn(owner domain.Identity) (string, any, error) {
	if err := owner.Validate(); err != nil {
		return "", nil, err
	}
	if id, ok := owner.UserID(); ok {
		return "user_id", id, nil
	}
	token, _ := owner.SessionToken()
	return "session_id", token, nil
}

// ownerValues returns the nullable user_id and session_id values for an insert.
func ownerValues(owner domain.Identity) (sql.NullInt64, sql.NullString) {
	if id, ok := owner.UserID(); ok {
		return sql.NullInt64{Int64: id, Valid: true}, sql.NullString{}
	}
	token, _ := owner.SessionToken()
	return sql.NullInt64{}, sql.NullString{String: token, Valid: true}
}

const cartItemSelect = `
        SELECT ci.id, ci.product_id, COALESCE(p.name, ''), ci.quantity, ci.price, ci.created_at, ci.updated_at
        FROM cart_items ci
        LEFT JOIN products p ON p.id = ci.product_id`

func scanCartItem(row rowScanner, owner domain.Identity) (*domain.CartItem, error) {
	item := &domain.CartItem{Owner: owner}
	if err := row.Scan(
		&item.ID,
		&item.ProductID,
		&item.ProductName,
		&item.Quantity,
		&item.Price,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *postgresCartRepository) List(ctx context.Context, owner domain.Identity) ([]domain.CartItem, error) {
	return r.list(ctx, owner, "")
}

func (r *postgresCartRepository) ListForUpdate(ctx context.Context, owner domain.Identity) ([]domain.CartItem, error) {
	return r.list(ctx, owner, " FOR UPDATE OF ci")
}

func (r *postgresCartRepository) list(ctx context.Context, owner domain.Identity, lock string) ([]domain.CartItem, error) {
	column, value, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}
	query := cartItemSelect + fmt.Sprintf(" WHERE ci.%s = $1 ORDER BY ci.id", column) + lock

	rows, err := r.q.QueryContext(ctx, query, value)
	if err != nil {
		r.log.Errorf("Repository: Failed to list cart of %s: %v", owner, err)
		return nil, fmt.Errorf("could not list cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows, owner)
		if err != nil {
			r.log.Errorf("Repository: Failed to scan cart item row for %s: %v", owner, err)
			return nil, fmt.Errorf("error scanning cart item: %w", err)
		}
		items = append(items, *item)
	}
	if err = rows.Err(); err != nil {
		r.log.Errorf("Repository: Error during cart items iteration for %s: %v", owner, err)
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	r.log.Debugf("Repository: Retrieved %d cart items for %s", len(items), owner)
	return items, nil
}

func (r *postgresCartRepository) GetItem(ctx context.Context, owner domain.Identity, itemID int64) (*domain.CartItem, error) {
	column, value, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}
	query := cartItemSelect + fmt.Sprintf(" WHERE ci.id = $1 AND ci.%s = $2", column)
	return r.getOne(ctx, owner, query, itemID, value)
}

func (r *postgresCartRepository) FindByProduct(ctx context.Context, owner domain.Identity, productID int64) (*domain.CartItem, error) {
	column, value, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}
	query := cartItemSelect + fmt.Sprintf(" WHERE ci.product_id = $1 AND ci.%s = $2", column)
	return r.getOne(ctx, owner, query, productID, value)
}

func (r *postgresCartRepository) getOne(ctx context.Context, owner domain.Identity, query string, args ...any) (*domain.CartItem, error) {
	item, err := scanCartItem(r.q.QueryRowContext(ctx, query, args...), owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartItemNotFound
		}
		r.log.Errorf("Repository: Failed to get cart item for %s: %v", owner, err)
		return nil, fmt.Errorf("could not get cart item: %w", err)
	}
	return item, nil
}

func (r *postgresCartRepository) AddOrIncrement(ctx context.Context, owner domain.Identity, productID int64, quantity int, price decimal.Decimal) (*domain.CartItem, error) {
	column, _, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}
	userID, sessionID := ownerValues(owner)

	// The conflict target must repeat the partial index predicate.
	query := fmt.Sprintf(`
        INSERT INTO cart_items (user_id, session_id, product_id, quantity, price)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (%[1]s, product_id) WHERE %[1]s IS NOT NULL
        DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
        RETURNING id, product_id, quantity, price, created_at, updated_at`, column)

	item := &domain.CartItem{Owner: owner}
	err = r.q.QueryRowContext(ctx, query, userID, sessionID, productID, quantity, price).Scan(
		&item.ID,
		&item.ProductID,
		&item.Quantity,
		&item.Price,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23514":
				r.log.Warnf("Repository: Quantity limit hit for product %d in cart of %s", productID, owner)
				return nil, domain.NewValidationError("quantity", fmt.Sprintf("must be at most %d", domain.MaxCartItemQuantity))
			case "23503":
				r.log.Warnf("Repository: Attempted to add non-existent product %d to cart of %s", productID, owner)
				return nil, domain.ErrProductNotFound
			}
		}
		r.log.Errorf("Repository: Failed to add product %d to cart of %s: %v", productID, owner, err)
		return nil, fmt.Errorf("could not add cart item: %w", err)
	}

	r.log.Infof("Repository: Cart item %d of %s now holds %d x product %d", item.ID, owner, item.Quantity, productID)
	return item, nil
}

func (r *postgresCartRepository) SetQuantity(ctx context.Context, owner domain.Identity, itemID int64, quantity int) error {
	column, value, err := ownerColumn(owner)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE id = $2 AND %s = $3`, column)
	return r.updateOne(ctx, owner, itemID, query, quantity, itemID, value)
}

func (r *postgresCartRepository) SetPrice(ctx context.Context, owner domain.Identity, itemID int64, price decimal.Decimal) error {
	column, value, err := ownerColumn(owner)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE cart_items SET price = $1, updated_at = NOW() WHERE id = $2 AND %s = $3`, column)
	return r.updateOne(ctx, owner, itemID, query, price, itemID, value)
}

func (r *postgresCartRepository) updateOne(ctx context.Context, owner domain.Identity, itemID int64, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
			r.log.Warnf("Repository: Check constraint violation for cart item %d: %s", itemID, pqErr.Message)
			return domain.NewValidationError("quantity", fmt.Sprintf("must be between 1 and %d", domain.MaxCartItemQuantity))
		}
		r.log.Errorf("Repository: Failed to update cart item %d of %s: %v", itemID, owner, err)
		return fmt.Errorf("could not update cart item: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not confirm cart item update: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

func (r *postgresCartRepository) Remove(ctx context.Context, owner domain.Identity, itemID int64) (bool, error) {
	column, value, err := ownerColumn(owner)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`DELETE FROM cart_items WHERE id = $1 AND %s = $2`, column)
	result, err := r.q.ExecContext(ctx, query, itemID, value)
	if err != nil {
		r.log.Errorf("Repository: Failed to remove cart item %d of %s: %v", itemID, owner, err)
		return false, fmt.Errorf("could not remove cart item: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("could not confirm cart item removal: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *postgresCartRepository) Clear(ctx context.Context, owner domain.Identity) (int, error) {
	column, value, err := ownerColumn(owner)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`DELETE FROM cart_items WHERE %s = $1`, column)
	result, err := r.q.ExecContext(ctx, query, value)
	if err != nil {
		r.log.Errorf("Repository: Failed to clear cart of %s: %v", owner, err)
		return 0, fmt.Errorf("could not clear cart: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not confirm cart clear: %w", err)
	}
	r.log.Infof("Repository: Cleared %d items from cart of %s", rowsAffected, owner)
	return int(rowsAffected), nil
}

func (r *postgresCartRepository) RemoveLines(ctx context.Context, owner domain.Identity, itemIDs []int64) (int, error) {
	column, value, err := ownerColumn(owner)
	if err != nil {
		return 0, err
	}
	if len(itemIDs) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`DELETE FROM cart_items WHERE %s = $1 AND id = ANY($2)`, column)
	result, err := r.q.ExecContext(ctx, query, value, pq.Array(itemIDs))
	if err != nil {
		r.log.Errorf("Repository: Failed to remove %d lines from cart of %s: %v", len(itemIDs), owner, err)
		return 0, fmt.Errorf("could not remove cart items: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not confirm cart items removal: %w", err)
	}
	r.log.Infof("Repository: Removed %d of %d lines from cart of %s", rowsAffected, len(itemIDs), owner)
	return int(rowsAffected), nil
}

func (r *postgresCartRepository) Count(ctx context.Context, owner domain.Identity) (int, error) {
	column, value, err := ownerColumn(owner)
	if err != nil {
		return 0, err
	}
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM cart_items WHERE %s = $1`, column)
	if err := r.q.QueryRowContext(ctx, query, value).Scan(&count); err != nil {
		r.log.Errorf("Repository: Failed to count cart items of %s: %v", owner, err)
		return 0, fmt.Errorf("could not count cart items: %w", err)
	}
	return count, nil
}
