package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/rental"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

func seedRental(t *testing.T, store *Store, id rental.RentalID) {
	t.Helper()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	product, err := catalog.NewProduct("prd-1", "SKU-1", "Generator", 5, now)
	require.NoError(t, err)
	store.SeedProduct(product)

	window, err := daterange.New(now, now.AddDate(0, 0, 5))
	require.NoError(t, err)
	booked, err := rental.NewQuotation(rental.CreateParams{
		ID: id, CustomerID: "cus-1", PricelistID: "pl-1",
		Rates: pricing.DefaultRates(), CreatedAt: now,
		Items: []rental.ItemParams{{
			ID: "itm-1", Product: product, Quantity: 1,
			RentalType: pricing.Daily, Window: window,
			Quote: pricing.Quote{UnitPrice: money.Must(100, "USD"), TotalPrice: money.Must(500, "USD")},
		}},
	})
	require.NoError(t, err)

	factory := NewFactory(store)
	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Rentals().Save(context.Background(), booked))
	require.NoError(t, unit.Commit(context.Background()))
}

func TestConcurrentSavesConflictOnVersion(t *testing.T) {
	store := NewStore()
	seedRental(t, store, "rnt-1")
	factory := NewFactory(store)
	ctx := context.Background()

	first, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	second, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)

	loadedFirst, err := first.Rentals().ByID(ctx, "rnt-1")
	require.NoError(t, err)
	loadedSecond, err := second.Rentals().ByID(ctx, "rnt-1")
	require.NoError(t, err)

	now := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, loadedFirst.Reserve(now))
	require.NoError(t, first.Rentals().Save(ctx, loadedFirst))
	require.NoError(t, first.Commit(ctx))

	require.NoError(t, loadedSecond.Reserve(now))
	require.NoError(t, second.Rentals().Save(ctx, loadedSecond))
	assert.ErrorIs(t, second.Commit(ctx), uow.ErrSerialization)

	// the losing unit left no trace
	check, err := NewFactory(store).Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	stored, err := check.Rentals().ByID(ctx, "rnt-1")
	require.NoError(t, err)
	assert.Equal(t, rental.StatusReserved, stored.FulfillmentStatus)
	require.NoError(t, check.Rollback(ctx))
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	store := NewStore()
	seedRental(t, store, "rnt-1")
	factory := NewFactory(store)
	ctx := context.Background()

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	loaded, err := unit.Rentals().ByID(ctx, "rnt-1")
	require.NoError(t, err)
	require.NoError(t, loaded.Reserve(time.Now().UTC()))
	require.NoError(t, unit.Rentals().Save(ctx, loaded))
	require.NoError(t, unit.Rollback(ctx))

	check, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	stored, err := check.Rentals().ByID(ctx, "rnt-1")
	require.NoError(t, err)
	assert.Equal(t, rental.StatusQuotation, stored.FulfillmentStatus)
	require.NoError(t, check.Rollback(ctx))
}

func TestLockProductsReleasesOnRollback(t *testing.T) {
	store := NewStore()
	factory := NewFactory(store)
	ctx := context.Background()

	ids := []catalog.ProductID{"prd-b", "prd-a", "prd-b"}

	first, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, first.LockProducts(ctx, ids))
	require.NoError(t, first.Rollback(ctx))

	// a second unit can take the same locks immediately
	second, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() {
		done <- second.LockProducts(ctx, ids)
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lock acquisition blocked after rollback")
	}
	require.NoError(t, second.Rollback(ctx))
}

func eventRecord(name string) appoutbox.EventRecord {
	return appoutbox.EventRecord{
		Name:       name,
		Aggregate:  "rnt-1",
		Payload:    []byte(`{"rental_id":"rnt-1"}`),
		OccurredAt: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestStagedEventsBecomeVisibleOnCommit(t *testing.T) {
	store := NewStore()
	seedRental(t, store, "rnt-1")
	factory := NewFactory(store)
	box := NewOutbox()

	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	ctx := uow.ContextWithUnitOfWork(context.Background(), unit)
	require.NoError(t, box.Add(ctx, eventRecord("rental.reserved")))

	// not claimable until the unit commits
	docs, err := box.Claim(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, unit.Commit(ctx))
	docs, err = box.Claim(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "rental.reserved", docs[0].Name)
}

func TestFailedCommitDropsStagedEvents(t *testing.T) {
	store := NewStore()
	seedRental(t, store, "rnt-1")
	factory := NewFactory(store)
	box := NewOutbox()
	ctx := context.Background()

	loser, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	loserCtx := uow.ContextWithUnitOfWork(ctx, loser)
	loaded, err := loser.Rentals().ByID(loserCtx, "rnt-1")
	require.NoError(t, err)
	require.NoError(t, loaded.Reserve(time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, loser.Rentals().Save(loserCtx, loaded))
	require.NoError(t, box.Add(loserCtx, eventRecord("rental.reserved")))

	// a competing unit bumps the version before the loser commits
	winner, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	fresh, err := winner.Rentals().ByID(ctx, "rnt-1")
	require.NoError(t, err)
	require.NoError(t, winner.Rentals().Save(ctx, fresh))
	require.NoError(t, winner.Commit(ctx))

	assert.ErrorIs(t, loser.Commit(loserCtx), uow.ErrSerialization)

	// the rolled-back attempt must not leak its event to the worker
	docs, err := box.Claim(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRollbackDropsStagedEvents(t *testing.T) {
	store := NewStore()
	seedRental(t, store, "rnt-1")
	factory := NewFactory(store)
	box := NewOutbox()

	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	ctx := uow.ContextWithUnitOfWork(context.Background(), unit)
	require.NoError(t, box.Add(ctx, eventRecord("rental.cancelled")))
	require.NoError(t, unit.Rollback(ctx))

	docs, err := box.Claim(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestOutboxAddRequiresUnitOfWork(t *testing.T) {
	box := NewOutbox()
	err := box.Add(context.Background(), eventRecord("rental.reserved"))
	assert.ErrorIs(t, err, ErrOutboxOutsideTransaction)
}
