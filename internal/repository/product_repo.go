package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
	"github.com/Rubin-11/coffee-tea-shop/pkg/db"
)

type postgresProductRepository struct {
	q   db.Querier
	log *logrus.Logger
}

func NewPostgresProductRepository(q db.Querier, logger *logrus.Logger) domain.ProductRepository {
	return &postgresProductRepository{
		q:   q,
		log: logger,
	}
}

const productColumns = `id, name, price, stock, is_available, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var deletedAt sql.NullTime
	if err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Stock,
		&product.IsAvailable,
		&deletedAt,
	); err != nil {
		return nil, err
	}
	product.DeletedAt = nullTime(deletedAt)
	return product, nil
}

func (r *postgresProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	product, err := scanProduct(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Repository: Product with ID %d not found", id)
			return nil, domain.ErrProductNotFound
		}
		r.log.Errorf("Repository: Failed to get product by ID %d: %v", id, err)
		return nil, fmt.Errorf("could not get product by id: %w", err)
	}
	return product, nil
}

func (r *postgresProductRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`
	return r.queryMany(ctx, query, ids)
}

func (r *postgresProductRepository) LockByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	// Locks are taken in id order so concurrent checkouts cannot deadlock.
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	return r.queryMany(ctx, query, ids)
}

func (r *postgresProductRepository) queryMany(ctx context.Context, query string, ids []int64) (map[int64]*domain.Product, error) {
	products := make(map[int64]*domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := r.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		r.log.Errorf("Repository: Failed to query products %v: %v", ids, err)
		return nil, fmt.Errorf("could not query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			r.log.Errorf("Repository: Failed to scan product row: %v", err)
			return nil, fmt.Errorf("error scanning product: %w", err)
		}
		products[product.ID] = product
	}
	if err = rows.Err(); err != nil {
		r.log.Errorf("Repository: Error during products iteration: %v", err)
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	r.log.Debugf("Repository: Loaded %d of %d requested products", len(products), len(ids))
	return products, nil
}

func (r *postgresProductRepository) Decrement(ctx context.Context, id int64, quantity int) error {
	query := `
        UPDATE products
        SET stock = stock - $2, updated_at = NOW()
        WHERE id = $1 AND stock >= $2`
	result, err := r.q.ExecContext(ctx, query, id, quantity)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
			r.log.Warnf("Repository: Stock check violation for product %d: %s", id, pqErr.Message)
			return r.insufficient(ctx, id, quantity)
		}
		r.log.Errorf("Repository: Failed to decrement stock for product %d: %v", id, err)
		return fmt.Errorf("could not decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.Errorf("Repository: Failed to get rows affected after decrementing product %d: %v", id, err)
		return fmt.Errorf("could not confirm stock decrement: %w", err)
	}
	if rowsAffected == 0 {
		return r.insufficient(ctx, id, quantity)
	}

	r.log.Infof("Repository: Stock of product %d decremented by %d", id, quantity)
	return nil
}

// insufficient explains a decrement that matched no row.
func (r *postgresProductRepository) insufficient(ctx context.Context, id int64, quantity int) error {
	product, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	r.log.Warnf("Repository: Insufficient stock for product %d: have %d, want %d", id, product.Stock, quantity)
	return &domain.InsufficientStockError{
		ProductID:   id,
		ProductName: product.Name,
		Available:   product.Stock,
		Requested:   quantity,
	}
}

func (r *postgresProductRepository) Restore(ctx context.Context, id int64, quantity int) error {
	query := `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`
	result, err := r.q.ExecContext(ctx, query, id, quantity)
	if err != nil {
		r.log.Errorf("Repository: Failed to restore stock for product %d: %v", id, err)
		return fmt.Errorf("could not restore stock: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not confirm stock restore: %w", err)
	}
	if rowsAffected == 0 {
		r.log.Warnf("Repository: Product %d not found while restoring stock", id)
		return domain.ErrProductNotFound
	}
	r.log.Infof("Repository: Stock of product %d restored by %d", id, quantity)
	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
