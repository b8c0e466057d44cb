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
	domainpricing "rentdesk/internal/domain/pricing"
	domainrental "rentdesk/internal/domain/rental"
)

const (
	createQuotationKey = "booking.create_quotation"
	sendQuotationKey   = "booking.send_quotation"
)

// CreateQuotationCommand prices a cart and stores it as a non-binding
// QUOTATION. No availability is consumed: the same window can be quoted to
// any number of customers; the hold only materializes when the quotation is
// converted to a reservation.
type CreateQuotationCommand struct {
	CommandID       string
	CustomerID      string
	PricelistID     string
	Cart            Cart
	IdempotencyKeyV string
}

func (c CreateQuotationCommand) Key() string { return createQuotationKey }

func (c CreateQuotationCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateQuotationCommand) ResultPrototype() any { return &QuotationResult{} }

func (c CreateQuotationCommand) Validate() error {
	if c.CustomerID == "" {
		return errors.New("booking: customer id is required")
	}
	if len(c.Cart.Lines) == 0 {
		return ErrEmptyCart
	}
	return nil
}

type QuotationResult struct {
	RentalID string         `json:"rental_id"`
	Rental   dto.RentalView `json:"rental"`
}

type CreateQuotationHandler struct {
	UoWFactory uow.UoWFactory
	Rates      domainpricing.RateConfig
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

func (h *CreateQuotationHandler) Handle(ctx context.Context, cmd CreateQuotationCommand) (*QuotationResult, error) {
	unit, ctx, finish, err := beginManagedUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer finish.rollbackUnlessCommitted(ctx)

	lines, err := cmd.Cart.resolve()
	if err != nil {
		return nil, err
	}

	id := cmd.CommandID
	if id == "" {
		id = uuid.NewString()
	}
	quoted, err := assembleRental(ctx, unit, assembleParams{
		RentalID:    domainrental.RentalID(id),
		CustomerID:  cmd.CustomerID,
		PricelistID: domainpricing.PricelistID(cmd.PricelistID),
		Lines:       lines,
		Rates:       h.Rates,
		Now:         h.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Rentals().Save(ctx, quoted); err != nil {
		return nil, err
	}

	pending := quoted.PendingEvents()
	quoted.ClearEvents()
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), pending); err != nil {
		return nil, err
	}

	if err := finish.commit(ctx); err != nil {
		return nil, err
	}
	return &QuotationResult{RentalID: string(quoted.ID), Rental: dto.MapRental(quoted)}, nil
}

func (h *CreateQuotationHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *CreateQuotationHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// SendQuotationCommand marks a quotation as delivered to the customer.
type SendQuotationCommand struct {
	RentalID string
}

func (c SendQuotationCommand) Key() string { return sendQuotationKey }

func (c SendQuotationCommand) Validate() error {
	if c.RentalID == "" {
		return errors.New("booking: rental id is required")
	}
	return nil
}

type SendQuotationHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Now     func() time.Time
}

func (h *SendQuotationHandler) Handle(ctx context.Context, cmd SendQuotationCommand) (*StatusResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	quoted, err := unit.Rentals().ByID(ctx, domainrental.RentalID(cmd.RentalID))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now().UTC()
	}
	if err := quoted.MarkSent(now); err != nil {
		return nil, err
	}
	if err := unit.Rentals().Save(ctx, quoted); err != nil {
		return nil, err
	}
	pending := quoted.PendingEvents()
	quoted.ClearEvents()
	encoder := h.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, encoder, pending); err != nil {
		return nil, err
	}
	return &StatusResult{RentalID: string(quoted.ID), FulfillmentStatus: string(quoted.FulfillmentStatus)}, nil
}

var _ commands.Handler[CreateQuotationCommand, *QuotationResult] = (*CreateQuotationHandler)(nil)
var _ commands.Handler[SendQuotationCommand, *StatusResult] = (*SendQuotationHandler)(nil)
var _ middleware.IdempotentCommand = (*CreateQuotationCommand)(nil)
