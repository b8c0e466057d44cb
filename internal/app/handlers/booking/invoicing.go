package booking

import (
	"context"
	"errors"
	"time"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	domainrental "rentdesk/internal/domain/rental"
)

const (
	markInvoicedKey = "invoicing.mark_invoiced"
	markPaidKey     = "invoicing.mark_paid"
)

// MarkInvoicedCommand records that an invoice document now covers the given
// items (all items when the list is empty). Billing state moves
// independently of the physical lifecycle.
type MarkInvoicedCommand struct {
	RentalID string
	ItemIDs  []string
}

func (c MarkInvoicedCommand) Key() string { return markInvoicedKey }

func (c MarkInvoicedCommand) Validate() error {
	if c.RentalID == "" {
		return errors.New("booking: rental id is required")
	}
	return nil
}

// MarkPaidCommand reacts to the opaque external "payment succeeded" event by
// moving the covered items to FULLY_INVOICED.
type MarkPaidCommand struct {
	RentalID string
	ItemIDs  []string
}

func (c MarkPaidCommand) Key() string { return markPaidKey }

func (c MarkPaidCommand) Validate() error {
	if c.RentalID == "" {
		return errors.New("booking: rental id is required")
	}
	return nil
}

type InvoiceStatusResult struct {
	RentalID      string `json:"rental_id"`
	InvoiceStatus string `json:"invoice_status"`
}

type InvoicingHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Now     func() time.Time
}

func (h *InvoicingHandler) HandleMarkInvoiced(ctx context.Context, cmd MarkInvoicedCommand) (*InvoiceStatusResult, error) {
	return h.shift(ctx, cmd.RentalID, cmd.ItemIDs, func(r *domainrental.Rental, ids []domainrental.ItemID, now time.Time) error {
		return r.MarkItemsInvoiced(ids, now)
	})
}

func (h *InvoicingHandler) HandleMarkPaid(ctx context.Context, cmd MarkPaidCommand) (*InvoiceStatusResult, error) {
	return h.shift(ctx, cmd.RentalID, cmd.ItemIDs, func(r *domainrental.Rental, ids []domainrental.ItemID, now time.Time) error {
		return r.MarkItemsPaid(ids, now)
	})
}

func (h *InvoicingHandler) shift(ctx context.Context, rentalID string, rawIDs []string, apply func(*domainrental.Rental, []domainrental.ItemID, time.Time) error) (*InvoiceStatusResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	booked, err := unit.Rentals().ByID(ctx, domainrental.RentalID(rentalID))
	if err != nil {
		return nil, err
	}
	ids := make([]domainrental.ItemID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		ids = append(ids, domainrental.ItemID(raw))
	}
	if err := apply(booked, ids, h.now()); err != nil {
		return nil, err
	}
	if err := unit.Rentals().Save(ctx, booked); err != nil {
		return nil, err
	}
	pending := booked.PendingEvents()
	booked.ClearEvents()
	encoder := h.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, encoder, pending); err != nil {
		return nil, err
	}
	return &InvoiceStatusResult{RentalID: string(booked.ID), InvoiceStatus: string(booked.InvoiceStatus())}, nil
}

// markInvoicedHandler and markPaidHandler adapt the shared InvoicingHandler
// to the typed bus registration.
type markInvoicedHandler struct{ *InvoicingHandler }

func (h markInvoicedHandler) Handle(ctx context.Context, cmd MarkInvoicedCommand) (*InvoiceStatusResult, error) {
	return h.HandleMarkInvoiced(ctx, cmd)
}

type markPaidHandler struct{ *InvoicingHandler }

func (h markPaidHandler) Handle(ctx context.Context, cmd MarkPaidCommand) (*InvoiceStatusResult, error) {
	return h.HandleMarkPaid(ctx, cmd)
}

// MarkInvoicedCommandHandler exposes the typed handler for bus wiring.
func (h *InvoicingHandler) MarkInvoicedCommandHandler() commands.Handler[MarkInvoicedCommand, *InvoiceStatusResult] {
	return markInvoicedHandler{h}
}

// MarkPaidCommandHandler exposes the typed handler for bus wiring.
func (h *InvoicingHandler) MarkPaidCommandHandler() commands.Handler[MarkPaidCommand, *InvoiceStatusResult] {
	return markPaidHandler{h}
}

func (h *InvoicingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}
