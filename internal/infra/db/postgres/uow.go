package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"

	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/rental"
)

// Factory opens SERIALIZABLE transactions. Combined with per-product
// advisory locks this serializes availability checks against commits.
type Factory struct {
	db *sql.DB
}

func NewFactory(db *sql.DB) *Factory {
	return &Factory{db: db}
}

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	tx, err := f.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", mapError(err))
	}
	return &Unit{tx: tx}, nil
}

type Unit struct {
	tx *sql.Tx
}

func (u *Unit) Products() catalog.Repository         { return productRepo{tx: u.tx} }
func (u *Unit) Rates() pricing.Resolver              { return rateRepo{tx: u.tx} }
func (u *Unit) Rentals() rental.Repository           { return rentalRepo{tx: u.tx} }
func (u *Unit) Commitments() availability.Repository { return commitmentRepo{tx: u.tx} }

// LockProducts takes transaction-scoped advisory locks, one per product, in
// sorted order. The locks vanish with the transaction.
func (u *Unit) LockProducts(ctx context.Context, ids []catalog.ProductID) error {
	distinct := make(map[catalog.ProductID]struct{}, len(ids))
	for _, id := range ids {
		distinct[id] = struct{}{}
	}
	ordered := make([]catalog.ProductID, 0, len(distinct))
	for id := range distinct {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
	for _, id := range ordered {
		if _, err := u.tx.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, string(id)); err != nil {
			return fmt.Errorf("postgres: lock product %s: %w", id, mapError(err))
		}
	}
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", mapError(err))
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

// Tx exposes the underlying transaction for outbox writes that must be
// atomic with the unit of work.
func (u *Unit) Tx() *sql.Tx { return u.tx }

const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
)

// mapError tags serialization failures and deadlocks as retryable.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateSerializationFailure, sqlstateDeadlockDetected:
			return errors.Join(uow.ErrSerialization, err)
		}
	}
	return err
}

var _ uow.UoWFactory = (*Factory)(nil)
var _ uow.UnitOfWork = (*Unit)(nil)
