package repository

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
	"github.com/Rubin-11/coffee-tea-shop/pkg/db"
)

type repositories struct {
	carts    domain.CartRepository
	orders   domain.OrderRepository
	products domain.ProductRepository
}

func newRepositories(q db.Querier, logger *logrus.Logger) *repositories {
	return &repositories{
		carts:    NewPostgresCartRepository(q, logger),
		orders:   NewPostgresOrderRepository(q, logger),
		products: NewPostgresProductRepository(q, logger),
	}
}

func (r *repositories) Carts() domain.CartRepository       { return r.carts }
func (r *repositories) Orders() domain.OrderRepository     { return r.orders }
func (r *repositories) Products() domain.ProductRepository { return r.products }

type PostgresStore struct {
	*repositories
	conn *sql.DB
	log  *logrus.Logger
}

var _ domain.Store = (*PostgresStore)(nil)

func NewPostgresStore(conn *sql.DB, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		repositories: newRepositories(conn, logger),
		conn:         conn,
		log:          logger,
	}
}

func (s *PostgresStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) error {
	return db.WithTx(ctx, s.conn, s.log, func(tx *sql.Tx) error {
		return fn(ctx, newRepositories(tx, s.log))
	})
}
