package memory

import (
	"context"
	"errors"

	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/rental"
	infraoutbox "rentdesk/internal/infra/outbox"
)

var ErrUnitFinished = errors.New("memory: unit of work already finished")

// Factory builds units of work over one shared Store.
type Factory struct {
	store *Store
}

func NewFactory(store *Store) *Factory {
	return &Factory{store: store}
}

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	return &Unit{
		store:          f.store,
		readOnly:       opts.ReadOnly,
		stagedProducts: make(map[catalog.ProductID]*catalog.Product),
		stagedRentals:  make(map[rental.RentalID]*rental.Rental),
		loadedVersions: make(map[rental.RentalID]int64),
	}, nil
}

// Unit stages writes and applies them atomically on Commit. Version
// mismatches at commit time surface as retryable serialization conflicts.
type Unit struct {
	store    *Store
	readOnly bool
	finished bool

	stagedProducts map[catalog.ProductID]*catalog.Product
	stagedRentals  map[rental.RentalID]*rental.Rental
	loadedVersions map[rental.RentalID]int64

	stagedEvents []infraoutbox.EventDocument
	eventsSink   *Outbox

	release func()
}

// stageEvent buffers an outbox document on the unit; the documents reach the
// worker-visible queue only when Commit succeeds.
func (u *Unit) stageEvent(sink *Outbox, doc infraoutbox.EventDocument) error {
	if u.finished {
		return ErrUnitFinished
	}
	if u.eventsSink != nil && u.eventsSink != sink {
		return errors.New("memory: unit already bound to another outbox")
	}
	u.eventsSink = sink
	u.stagedEvents = append(u.stagedEvents, doc)
	return nil
}

func (u *Unit) Products() catalog.Repository         { return productRepo{unit: u} }
func (u *Unit) Rates() pricing.Resolver              { return rateRepo{unit: u} }
func (u *Unit) Rentals() rental.Repository           { return rentalRepo{unit: u} }
func (u *Unit) Commitments() availability.Repository { return commitmentRepo{unit: u} }

func (u *Unit) LockProducts(ctx context.Context, ids []catalog.ProductID) error {
	if u.finished {
		return ErrUnitFinished
	}
	if u.release != nil {
		// locks are held until the unit finishes; a second call widens
		// nothing and would deadlock against ourselves
		return errors.New("memory: product locks already held")
	}
	release, err := u.store.locks.acquire(ctx, ids)
	if err != nil {
		return err
	}
	u.release = release
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.finished {
		return ErrUnitFinished
	}
	u.finished = true
	defer u.releaseLocks()

	if u.readOnly && (len(u.stagedProducts) > 0 || len(u.stagedRentals) > 0) {
		return errors.New("memory: write staged in read-only unit")
	}

	if err := u.applyStaged(); err != nil {
		return err
	}
	if u.eventsSink != nil {
		u.eventsSink.promote(u.stagedEvents)
	}
	u.stagedEvents = nil
	return nil
}

// applyStaged validates every version check before touching the store, so a
// conflict on any rental leaves the whole batch unapplied.
func (u *Unit) applyStaged() error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	for id := range u.stagedRentals {
		stored, exists := u.store.rentals[id]
		expected, loaded := u.loadedVersions[id]
		switch {
		case exists && loaded && stored.Version != expected:
			return uow.ErrSerialization
		case exists && !loaded:
			return uow.ErrSerialization
		}
	}
	for id, staged := range u.stagedRentals {
		u.store.rentals[id] = staged
	}
	for id, staged := range u.stagedProducts {
		u.store.products[id] = staged
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.finished {
		return nil
	}
	u.finished = true
	u.releaseLocks()
	u.stagedProducts = make(map[catalog.ProductID]*catalog.Product)
	u.stagedRentals = make(map[rental.RentalID]*rental.Rental)
	u.stagedEvents = nil
	return nil
}

func (u *Unit) releaseLocks() {
	if u.release != nil {
		u.release()
		u.release = nil
	}
}

var _ uow.UoWFactory = (*Factory)(nil)
var _ uow.UnitOfWork = (*Unit)(nil)
