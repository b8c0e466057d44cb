package uow

import (
	"context"
	"errors"

	domainavailability "rentdesk/internal/domain/availability"
	domaincatalog "rentdesk/internal/domain/catalog"
	domainpricing "rentdesk/internal/domain/pricing"
	domainrental "rentdesk/internal/domain/rental"
)

// ErrSerialization marks a transaction conflict that is safe to retry as a
// whole. Storage backends wrap their native conflict signal with it.
var ErrSerialization = errors.New("uow: transaction serialization conflict")

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Products() domaincatalog.Repository
	Rates() domainpricing.Resolver
	Rentals() domainrental.Repository
	Commitments() domainavailability.Repository

	// LockProducts serializes concurrent bookings touching the same
	// products for the rest of the transaction. Implementations must
	// acquire in a stable order so multi-product carts cannot deadlock.
	LockProducts(ctx context.Context, ids []domaincatalog.ProductID) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// IsRetryable reports whether the error is a serialization conflict the
// caller may resolve by re-running the whole unit of work.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerialization)
}
