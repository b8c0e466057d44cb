package booking

import (
	"context"
	"errors"
	"time"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	domainavailability "rentdesk/internal/domain/availability"
	domainrental "rentdesk/internal/domain/rental"
)

const transitionStatusKey = "booking.transition_status"

// TransitionStatusCommand drives the fulfillment lifecycle of a rental.
// Converting a quotation to RESERVED re-runs the availability check at
// transition time: whatever was free when the quote was issued may be gone.
type TransitionStatusCommand struct {
	RentalID string
	Target   string
	Reason   string
}

func (c TransitionStatusCommand) Key() string { return transitionStatusKey }

func (c TransitionStatusCommand) Validate() error {
	if c.RentalID == "" {
		return errors.New("booking: rental id is required")
	}
	if !domainrental.FulfillmentStatus(c.Target).Valid() {
		return domainrental.ErrUnknownFulfillmentStatus
	}
	return nil
}

type StatusResult struct {
	RentalID          string `json:"rental_id"`
	FulfillmentStatus string `json:"fulfillment_status"`
}

type TransitionStatusHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Now     func() time.Time
}

func (h *TransitionStatusHandler) Handle(ctx context.Context, cmd TransitionStatusCommand) (*StatusResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	target := domainrental.FulfillmentStatus(cmd.Target)

	booked, err := unit.Rentals().ByID(ctx, domainrental.RentalID(cmd.RentalID))
	if err != nil {
		return nil, err
	}

	if target == domainrental.StatusReserved {
		// Legality first: a rental that is already holding (or done holding)
		// inventory must fail as an illegal transition, not as an
		// availability shortage caused by counting its own items.
		switch booked.FulfillmentStatus {
		case domainrental.StatusQuotation, domainrental.StatusQuotationSent:
		default:
			return nil, domainrental.ErrIllegalTransition
		}
		if err := recheckAvailability(ctx, unit, booked); err != nil {
			return nil, err
		}
	}

	now := h.now()
	if target == domainrental.StatusCancelled && cmd.Reason != "" {
		err = booked.Cancel(cmd.Reason, now)
	} else {
		err = booked.TransitionTo(target, now)
	}
	if err != nil {
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
	return &StatusResult{RentalID: string(booked.ID), FulfillmentStatus: string(booked.FulfillmentStatus)}, nil
}

// recheckAvailability locks the rental's products and verifies every item
// still fits. The rental itself is not yet committed, so nothing here
// double-counts its own quantities against the ledger.
func recheckAvailability(ctx context.Context, unit uow.UnitOfWork, booked *domainrental.Rental) error {
	lines := make([]resolvedLine, 0, len(booked.Items))
	for _, item := range booked.Items {
		lines = append(lines, resolvedLine{
			ProductID:  item.ProductID,
			RentalType: item.RentalType,
			Quantity:   item.Quantity,
			Window:     item.Window,
		})
	}
	if err := unit.LockProducts(ctx, productIDs(lines)); err != nil {
		return err
	}
	ledger := domainavailability.NewLedger(unit.Products(), unit.Commitments())
	return checkCartAvailability(ctx, ledger, lines)
}

func (h *TransitionStatusHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *TransitionStatusHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[TransitionStatusCommand, *StatusResult] = (*TransitionStatusHandler)(nil)
var _ middleware.SelfValidating = (*TransitionStatusCommand)(nil)
