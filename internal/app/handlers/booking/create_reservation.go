package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	domainavailability "rentdesk/internal/domain/availability"
	domainpricing "rentdesk/internal/domain/pricing"
	domainrental "rentdesk/internal/domain/rental"
)

const createReservationKey = "booking.create_reservation"

var ErrUnitOfWorkRequired = errors.New("booking: unit of work required")

// CreateReservationCommand books a whole cart atomically: every line is
// availability-checked and priced inside one transaction, and either all
// lines commit as RESERVED or none do.
type CreateReservationCommand struct {
	CommandID       string
	CustomerID      string
	PricelistID     string
	Cart            Cart
	IdempotencyKeyV string
}

func (c CreateReservationCommand) Key() string { return createReservationKey }

func (c CreateReservationCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateReservationCommand) ResultPrototype() any { return &CreateReservationResult{} }

func (c CreateReservationCommand) Validate() error {
	if c.CustomerID == "" {
		return errors.New("booking: customer id is required")
	}
	if len(c.Cart.Lines) == 0 {
		return ErrEmptyCart
	}
	return nil
}

type CreateReservationResult struct {
	RentalID string         `json:"rental_id"`
	Rental   dto.RentalView `json:"rental"`
}

type CreateReservationHandler struct {
	UoWFactory uow.UoWFactory
	Rates      domainpricing.RateConfig
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

func (h *CreateReservationHandler) Handle(ctx context.Context, cmd CreateReservationCommand) (*CreateReservationResult, error) {
	unit, ctx, finish, err := h.beginManaged(ctx)
	if err != nil {
		return nil, err
	}
	defer finish.rollbackUnlessCommitted(ctx)

	lines, err := cmd.Cart.resolve()
	if err != nil {
		return nil, err
	}

	// The advisory locks must cover the availability check and the insert;
	// acquiring them first is what makes check-then-act safe here.
	if err := unit.LockProducts(ctx, productIDs(lines)); err != nil {
		return nil, err
	}

	now := h.now()
	ledger := domainavailability.NewLedger(unit.Products(), unit.Commitments())
	if err := checkCartAvailability(ctx, ledger, lines); err != nil {
		return nil, err
	}

	booked, err := assembleRental(ctx, unit, assembleParams{
		RentalID:    domainrental.RentalID(cmd.CommandID),
		CustomerID:  cmd.CustomerID,
		PricelistID: domainpricing.PricelistID(cmd.PricelistID),
		Lines:       lines,
		Rates:       h.Rates,
		Now:         now,
	})
	if err != nil {
		return nil, err
	}
	if err := booked.Reserve(now); err != nil {
		return nil, err
	}
	if err := unit.Rentals().Save(ctx, booked); err != nil {
		return nil, err
	}

	pending := booked.PendingEvents()
	booked.ClearEvents()
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), pending); err != nil {
		return nil, err
	}

	if err := finish.commit(ctx); err != nil {
		return nil, err
	}
	return &CreateReservationResult{RentalID: string(booked.ID), Rental: dto.MapRental(booked)}, nil
}

func (h *CreateReservationHandler) beginManaged(ctx context.Context) (uow.UnitOfWork, context.Context, *txFinisher, error) {
	return beginManagedUnit(ctx, h.UoWFactory)
}

func (h *CreateReservationHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *CreateReservationHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// checkCartAvailability verifies every line fits, counting units already
// claimed by earlier lines of the same cart for the same product and an
// overlapping window, since the ledger cannot see those yet.
func checkCartAvailability(ctx context.Context, ledger *domainavailability.Ledger, lines []resolvedLine) error {
	for i, line := range lines {
		claimed := 0
		for _, prior := range lines[:i] {
			if prior.ProductID == line.ProductID && prior.Window.Overlaps(line.Window) {
				claimed += prior.Quantity
			}
		}
		if _, err := ledger.CheckQuantity(ctx, line.ProductID, line.Window, line.Quantity+claimed); err != nil {
			return err
		}
	}
	return nil
}

type assembleParams struct {
	RentalID    domainrental.RentalID
	CustomerID  string
	PricelistID domainpricing.PricelistID
	Lines       []resolvedLine
	Rates       domainpricing.RateConfig
	Now         time.Time
}

// assembleRental prices every cart line against the active rate card and
// builds the aggregate with price snapshots frozen at booking time.
func assembleRental(ctx context.Context, unit uow.UnitOfWork, params assembleParams) (*domainrental.Rental, error) {
	items := make([]domainrental.ItemParams, 0, len(params.Lines))
	for _, line := range params.Lines {
		product, err := unit.Products().ByID(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		item, err := unit.Rates().Resolve(ctx, params.PricelistID, line.ProductID, line.RentalType)
		if err != nil {
			return nil, err
		}
		quote, err := domainpricing.PriceLine(item, product, line.Window, line.Quantity)
		if err != nil {
			return nil, err
		}
		items = append(items, domainrental.ItemParams{
			ID:         domainrental.ItemID(uuid.NewString()),
			Product:    product,
			Quantity:   line.Quantity,
			RentalType: line.RentalType,
			Window:     line.Window,
			Quote:      quote,
		})
	}
	return domainrental.NewQuotation(domainrental.CreateParams{
		ID:          params.RentalID,
		CustomerID:  params.CustomerID,
		PricelistID: params.PricelistID,
		Items:       items,
		Rates:       params.Rates,
		CreatedAt:   params.Now,
	})
}

// txFinisher tracks whether a handler-managed unit of work still needs a
// rollback. Handlers running under the Transaction middleware reuse the
// ambient unit and both methods are no-ops.
type txFinisher struct {
	unit    uow.UnitOfWork
	managed bool
	done    bool
}

func beginManagedUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, *txFinisher, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, &txFinisher{unit: unit}, nil
	}
	if factory == nil {
		return nil, ctx, nil, ErrUnitOfWorkRequired
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := ctx
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(ctx)
	}
	execCtx = uow.ContextWithUnitOfWork(execCtx, unit)
	return unit, execCtx, &txFinisher{unit: unit, managed: true}, nil
}

func (f *txFinisher) commit(ctx context.Context) error {
	if !f.managed {
		return nil
	}
	if err := f.unit.Commit(ctx); err != nil {
		return err
	}
	f.done = true
	return nil
}

func (f *txFinisher) rollbackUnlessCommitted(ctx context.Context) {
	if f == nil || !f.managed || f.done {
		return
	}
	_ = f.unit.Rollback(ctx)
}

var _ commands.Handler[CreateReservationCommand, *CreateReservationResult] = (*CreateReservationHandler)(nil)
var _ middleware.IdempotentCommand = (*CreateReservationCommand)(nil)
var _ middleware.SelfValidating = (*CreateReservationCommand)(nil)
