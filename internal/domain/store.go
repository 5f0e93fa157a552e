package domain

import "context"

type Repositories interface {
	Carts() CartRepository
	Orders() OrderRepository
	Products() ProductRepository
}

// Store gives non-transactional access to the repositories and runs units of
// work atomically. Inside fn only tx must be used; nothing done through it is
// visible to others unless fn returns nil.
type Store interface {
	Repositories
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}
