package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/uow"
	domainavailability "rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/catalog"
	domainpricing "rentdesk/internal/domain/pricing"
	domainrental "rentdesk/internal/domain/rental"
	"rentdesk/internal/domain/shared/money"
	"rentdesk/internal/infra/storage/memory"
)

type bookingEnv struct {
	store   *memory.Store
	factory *memory.Factory
	outbox  *memory.Outbox
	now     time.Time
}

func newBookingEnv(t *testing.T) *bookingEnv {
	t.Helper()
	env := &bookingEnv{
		store: memory.NewStore(),
		now:   time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	env.factory = memory.NewFactory(env.store)
	env.outbox = memory.NewOutbox()
	return env
}

func (e *bookingEnv) seedProduct(t *testing.T, id catalog.ProductID, quantity int, dailyPrice int64) {
	t.Helper()
	product, err := catalog.NewProduct(id, "SKU-"+string(id), "Product "+string(id), quantity, e.now)
	require.NoError(t, err)
	e.store.SeedProduct(product)
	e.store.SeedRate(domainpricing.PricelistItem{
		PricelistID: "pl-1",
		ProductID:   id,
		RentalType:  domainpricing.Daily,
		Price:       money.Must(dailyPrice, "USD"),
		Discount:    money.Must(0, "USD"),
	})
}

func (e *bookingEnv) reservationHandler() *CreateReservationHandler {
	return &CreateReservationHandler{
		UoWFactory: e.factory,
		Rates:      domainpricing.DefaultRates(),
		Outbox:     e.outbox,
		Now:        func() time.Time { return e.now },
	}
}

func (e *bookingEnv) quotationHandler() *CreateQuotationHandler {
	return &CreateQuotationHandler{
		UoWFactory: e.factory,
		Rates:      domainpricing.DefaultRates(),
		Outbox:     e.outbox,
		Now:        func() time.Time { return e.now },
	}
}

func (e *bookingEnv) freeUnits(t *testing.T, id catalog.ProductID, start, end time.Time) int {
	t.Helper()
	handler := &CheckAvailabilityHandler{UoWFactory: e.factory}
	result, err := handler.Handle(context.Background(), CheckAvailabilityQuery{
		ProductID: string(id),
		StartDate: start,
		EndDate:   end,
		Quantity:  1,
	})
	require.NoError(t, err)
	return result.FreeUnits
}

func (e *bookingEnv) line(id catalog.ProductID, quantity, fromDay, toDay int) CartLine {
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return CartLine{
		ProductID:  string(id),
		RentalType: string(domainpricing.Daily),
		Quantity:   quantity,
		StartDate:  base.AddDate(0, 0, fromDay),
		EndDate:    base.AddDate(0, 0, toDay),
	}
}

func TestCreateReservationCommitsWholeCart(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 5, 10000)
	env.seedProduct(t, "prd-b", 2, 4000)

	result, err := env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID:   "rnt-1",
		CustomerID:  "cus-1",
		PricelistID: "pl-1",
		Cart: Cart{Lines: []CartLine{
			env.line("prd-a", 2, 0, 5),
			env.line("prd-b", 1, 0, 5),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "rnt-1", result.RentalID)
	assert.Equal(t, string(domainrental.StatusReserved), result.Rental.FulfillmentStatus)
	require.Len(t, result.Rental.Items, 2)

	// 2x5 days at 100.00 plus 1x5 days at 40.00
	assert.Equal(t, int64(120000), result.Rental.Subtotal.Amount)
	assert.Equal(t, int64(24000), result.Rental.SecurityDeposit.Amount)
	assert.Equal(t, int64(9600), result.Rental.Tax.Amount)
	assert.Equal(t, int64(153600), result.Rental.GrandTotal.Amount)

	// the committed units now count against the window
	start := env.line("prd-a", 0, 0, 5).StartDate
	end := env.line("prd-a", 0, 0, 5).EndDate
	assert.Equal(t, 3, env.freeUnits(t, "prd-a", start, end))
	assert.Equal(t, 1, env.freeUnits(t, "prd-b", start, end))
}

func TestCreateReservationIsAtomicAcrossLines(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 5, 10000)
	env.seedProduct(t, "prd-b", 2, 4000)

	_, err := env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID:   "rnt-1",
		CustomerID:  "cus-1",
		PricelistID: "pl-1",
		Cart: Cart{Lines: []CartLine{
			env.line("prd-a", 2, 0, 5),
			env.line("prd-b", 3, 0, 5), // exceeds the fleet of 2
		}},
	})
	assert.ErrorIs(t, err, domainavailability.ErrInsufficientAvailability)

	// the passing first line must not have been committed either
	start := env.line("prd-a", 0, 0, 5).StartDate
	end := env.line("prd-a", 0, 0, 5).EndDate
	assert.Equal(t, 5, env.freeUnits(t, "prd-a", start, end))

	getHandler := &GetRentalHandler{UoWFactory: env.factory}
	_, err = getHandler.Handle(context.Background(), GetRentalQuery{RentalID: "rnt-1"})
	assert.ErrorIs(t, err, domainrental.ErrRentalNotFound)
}

func TestCreateReservationCountsOwnCartLines(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 5, 10000)

	// two overlapping lines of the same product must be judged together
	_, err := env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID:   "rnt-1",
		CustomerID:  "cus-1",
		PricelistID: "pl-1",
		Cart: Cart{Lines: []CartLine{
			env.line("prd-a", 3, 0, 5),
			env.line("prd-a", 3, 3, 8),
		}},
	})
	assert.ErrorIs(t, err, domainavailability.ErrInsufficientAvailability)

	// disjoint windows of the same product are fine
	_, err = env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID:   "rnt-2",
		CustomerID:  "cus-1",
		PricelistID: "pl-1",
		Cart: Cart{Lines: []CartLine{
			env.line("prd-a", 3, 0, 5),
			env.line("prd-a", 3, 5, 8),
		}},
	})
	assert.NoError(t, err)
}

func TestCreateReservationRejectsUnknownRate(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 5, 10000)

	cart := Cart{Lines: []CartLine{env.line("prd-a", 1, 0, 5)}}
	cart.Lines[0].RentalType = string(domainpricing.Weekly)

	_, err := env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID: "rnt-1", CustomerID: "cus-1", PricelistID: "pl-1", Cart: cart,
	})
	assert.ErrorIs(t, err, domainpricing.ErrRateNotFound)
}

func TestConcurrentReservationsNeverOverbook(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 1, 10000)

	handler := env.reservationHandler()
	const attempts = 8

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = handler.Handle(context.Background(), CreateReservationCommand{
				CommandID:   "rnt-" + string(rune('a'+n)),
				CustomerID:  "cus-1",
				PricelistID: "pl-1",
				Cart:        Cart{Lines: []CartLine{env.line("prd-a", 1, 0, 5)}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domainavailability.ErrInsufficientAvailability)
		}
	}
	assert.Equal(t, 1, succeeded)

	start := env.line("prd-a", 0, 0, 5).StartDate
	end := env.line("prd-a", 0, 0, 5).EndDate
	assert.Equal(t, 0, env.freeUnits(t, "prd-a", start, end))
}

func TestQuotationHoldsNoInventory(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 2, 10000)

	result, err := env.quotationHandler().Handle(context.Background(), CreateQuotationCommand{
		CommandID:   "rnt-q1",
		CustomerID:  "cus-1",
		PricelistID: "pl-1",
		Cart:        Cart{Lines: []CartLine{env.line("prd-a", 2, 0, 5)}},
	})
	require.NoError(t, err)
	assert.Equal(t, string(domainrental.StatusQuotation), result.Rental.FulfillmentStatus)

	// a quotation over the full fleet leaves the fleet free
	start := env.line("prd-a", 0, 0, 5).StartDate
	end := env.line("prd-a", 0, 0, 5).EndDate
	assert.Equal(t, 2, env.freeUnits(t, "prd-a", start, end))
}

func (e *bookingEnv) transition(t *testing.T, rentalID, target string) error {
	t.Helper()
	unit, err := e.factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	ctx := uow.ContextWithUnitOfWork(context.Background(), unit)

	handler := &TransitionStatusHandler{Outbox: e.outbox, Now: func() time.Time { return e.now }}
	_, err = handler.Handle(ctx, TransitionStatusCommand{RentalID: rentalID, Target: target})
	if err != nil {
		_ = unit.Rollback(ctx)
		return err
	}
	return unit.Commit(ctx)
}

func TestReserveRechecksAvailabilityAtTransitionTime(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 1, 10000)

	_, err := env.quotationHandler().Handle(context.Background(), CreateQuotationCommand{
		CommandID:   "rnt-q1",
		CustomerID:  "cus-1",
		PricelistID: "pl-1",
		Cart:        Cart{Lines: []CartLine{env.line("prd-a", 1, 0, 5)}},
	})
	require.NoError(t, err)

	// someone else books the only unit before the quotation converts
	_, err = env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID:   "rnt-r1",
		CustomerID:  "cus-2",
		PricelistID: "pl-1",
		Cart:        Cart{Lines: []CartLine{env.line("prd-a", 1, 0, 5)}},
	})
	require.NoError(t, err)

	err = env.transition(t, "rnt-q1", string(domainrental.StatusReserved))
	assert.ErrorIs(t, err, domainavailability.ErrInsufficientAvailability)
}

func TestFulfillmentLifecycleThroughHandlers(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 2, 10000)

	_, err := env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID:   "rnt-1",
		CustomerID:  "cus-1",
		PricelistID: "pl-1",
		Cart:        Cart{Lines: []CartLine{env.line("prd-a", 1, 0, 5)}},
	})
	require.NoError(t, err)

	require.NoError(t, env.transition(t, "rnt-1", string(domainrental.StatusPickedUp)))
	require.NoError(t, env.transition(t, "rnt-1", string(domainrental.StatusReturned)))

	// returning released the unit
	start := env.line("prd-a", 0, 0, 5).StartDate
	end := env.line("prd-a", 0, 0, 5).EndDate
	assert.Equal(t, 2, env.freeUnits(t, "prd-a", start, end))

	// and the state machine refuses to go backwards
	err = env.transition(t, "rnt-1", string(domainrental.StatusReserved))
	assert.ErrorIs(t, err, domainrental.ErrIllegalTransition)
}

func TestCancelReleasesReservedUnits(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 1, 10000)

	_, err := env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID:   "rnt-1",
		CustomerID:  "cus-1",
		PricelistID: "pl-1",
		Cart:        Cart{Lines: []CartLine{env.line("prd-a", 1, 0, 5)}},
	})
	require.NoError(t, err)

	start := env.line("prd-a", 0, 0, 5).StartDate
	end := env.line("prd-a", 0, 0, 5).EndDate
	assert.Equal(t, 0, env.freeUnits(t, "prd-a", start, end))

	require.NoError(t, env.transition(t, "rnt-1", string(domainrental.StatusCancelled)))
	assert.Equal(t, 1, env.freeUnits(t, "prd-a", start, end))
}

func TestListCustomerRentalsFiltersByStatus(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 5, 10000)

	_, err := env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID: "rnt-1", CustomerID: "cus-1", PricelistID: "pl-1",
		Cart: Cart{Lines: []CartLine{env.line("prd-a", 1, 0, 5)}},
	})
	require.NoError(t, err)
	_, err = env.quotationHandler().Handle(context.Background(), CreateQuotationCommand{
		CommandID: "rnt-2", CustomerID: "cus-1", PricelistID: "pl-1",
		Cart: Cart{Lines: []CartLine{env.line("prd-a", 1, 10, 15)}},
	})
	require.NoError(t, err)

	listHandler := &ListCustomerRentalsHandler{UoWFactory: env.factory}

	all, err := listHandler.Handle(context.Background(), ListCustomerRentalsQuery{CustomerID: "cus-1"})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	reserved, err := listHandler.Handle(context.Background(), ListCustomerRentalsQuery{
		CustomerID: "cus-1",
		Status:     string(domainrental.StatusReserved),
	})
	require.NoError(t, err)
	require.Len(t, reserved.Items, 1)
	assert.Equal(t, "rnt-1", reserved.Items[0].ID)
}

func TestInvoicingHandlersRollUp(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 5, 10000)

	_, err := env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID: "rnt-1", CustomerID: "cus-1", PricelistID: "pl-1",
		Cart: Cart{Lines: []CartLine{env.line("prd-a", 1, 0, 5)}},
	})
	require.NoError(t, err)

	invoicing := &InvoicingHandler{Outbox: env.outbox, Now: func() time.Time { return env.now }}

	runInvoicing := func(apply func(ctx context.Context) error) error {
		unit, err := env.factory.Begin(context.Background(), uow.TxOptions{})
		require.NoError(t, err)
		ctx := uow.ContextWithUnitOfWork(context.Background(), unit)
		if err := apply(ctx); err != nil {
			_ = unit.Rollback(ctx)
			return err
		}
		return unit.Commit(ctx)
	}

	err = runInvoicing(func(ctx context.Context) error {
		result, err := invoicing.HandleMarkInvoiced(ctx, MarkInvoicedCommand{RentalID: "rnt-1"})
		if err != nil {
			return err
		}
		assert.Equal(t, string(domainrental.InvoicePending), result.InvoiceStatus)
		return nil
	})
	require.NoError(t, err)

	err = runInvoicing(func(ctx context.Context) error {
		result, err := invoicing.HandleMarkPaid(ctx, MarkPaidCommand{RentalID: "rnt-1"})
		if err != nil {
			return err
		}
		assert.Equal(t, string(domainrental.InvoiceFull), result.InvoiceStatus)
		return nil
	})
	require.NoError(t, err)

	// paying twice is rejected
	err = runInvoicing(func(ctx context.Context) error {
		_, err := invoicing.HandleMarkPaid(ctx, MarkPaidCommand{RentalID: "rnt-1"})
		return err
	})
	assert.ErrorIs(t, err, domainrental.ErrIllegalInvoiceTransition)
}

func TestReservationEventsReachOutbox(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 5, 10000)

	_, err := env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID: "rnt-1", CustomerID: "cus-1", PricelistID: "pl-1",
		Cart: Cart{Lines: []CartLine{env.line("prd-a", 1, 0, 5)}},
	})
	require.NoError(t, err)

	// committed with the unit of work, visible without any explicit flush
	docs, err := env.outbox.Claim(context.Background(), 10)
	require.NoError(t, err)

	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		names = append(names, doc.Name)
	}
	assert.Contains(t, names, "quotation.created")
	assert.Contains(t, names, "rental.reserved")
}

func TestReserveOnReservedRentalIsIllegal(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 1, 10000)

	_, err := env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID:   "rnt-1",
		CustomerID:  "cus-1",
		PricelistID: "pl-1",
		Cart:        Cart{Lines: []CartLine{env.line("prd-a", 1, 0, 5)}},
	})
	require.NoError(t, err)

	// the fleet is fully booked by the rental itself; reserving again must
	// report the transition as illegal, not the fleet as unavailable
	err = env.transition(t, "rnt-1", string(domainrental.StatusReserved))
	assert.ErrorIs(t, err, domainrental.ErrIllegalTransition)
	assert.NotErrorIs(t, err, domainavailability.ErrInsufficientAvailability)
}

// contendedTransitionHandler lets the first attempt run to completion and
// then commits a competing write to the same rental, so the attempt's own
// commit loses its version check and the retry middleware re-dispatches.
type contendedTransitionHandler struct {
	inner *TransitionStatusHandler
	env   *bookingEnv
	fired bool
}

func (h *contendedTransitionHandler) Handle(ctx context.Context, cmd TransitionStatusCommand) (*StatusResult, error) {
	res, err := h.inner.Handle(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !h.fired {
		h.fired = true
		unit, err := h.env.factory.Begin(context.Background(), uow.TxOptions{})
		if err != nil {
			return nil, err
		}
		bctx := uow.ContextWithUnitOfWork(context.Background(), unit)
		booked, err := unit.Rentals().ByID(bctx, domainrental.RentalID(cmd.RentalID))
		if err != nil {
			return nil, err
		}
		if err := unit.Rentals().Save(bctx, booked); err != nil {
			return nil, err
		}
		if err := unit.Commit(bctx); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func TestConflictedAttemptPublishesEventsOnce(t *testing.T) {
	env := newBookingEnv(t)
	env.seedProduct(t, "prd-a", 1, 10000)

	_, err := env.reservationHandler().Handle(context.Background(), CreateReservationCommand{
		CommandID:   "rnt-1",
		CustomerID:  "cus-1",
		PricelistID: "pl-1",
		Cart:        Cart{Lines: []CartLine{env.line("prd-a", 1, 0, 5)}},
	})
	require.NoError(t, err)

	// drop the reservation events so only the transition is observed
	_, err = env.outbox.Claim(context.Background(), 0)
	require.NoError(t, err)

	reg := commands.NewRegistry()
	commands.MustRegister(reg, &contendedTransitionHandler{
		inner: &TransitionStatusHandler{Outbox: env.outbox, Now: func() time.Time { return env.now }},
		env:   env,
	})
	bus := middleware.ChainCommands(reg,
		middleware.Retry([]time.Duration{time.Millisecond}, nil),
		middleware.Transaction(env.factory, nil),
		middleware.OutboxFlush(env.outbox),
	)

	result, err := commands.Dispatch[TransitionStatusCommand, *StatusResult](
		context.Background(), bus,
		TransitionStatusCommand{RentalID: "rnt-1", Target: string(domainrental.StatusPickedUp)},
	)
	require.NoError(t, err)
	assert.Equal(t, string(domainrental.StatusPickedUp), result.FulfillmentStatus)

	// the first attempt rolled back; its staged event must not reach the worker
	docs, err := env.outbox.Claim(context.Background(), 0)
	require.NoError(t, err)
	pickedUp := 0
	for _, doc := range docs {
		if doc.Name == "rental.picked_up" {
			pickedUp++
		}
	}
	assert.Equal(t, 1, pickedUp)
}
