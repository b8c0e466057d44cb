package rental

import (
	"context"
	"errors"
	"time"

	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/events"
	"rentdesk/internal/domain/shared/money"
)

var (
	ErrRentalNotFound            = errors.New("rental: not found")
	ErrIllegalTransition         = errors.New("rental: illegal fulfillment status transition")
	ErrIllegalInvoiceTransition  = errors.New("rental: illegal invoice status transition")
	ErrNoItems                   = errors.New("rental: at least one item required")
	ErrItemNotFound              = errors.New("rental: item not found")
	ErrInvalidItemQuantity       = errors.New("rental: item quantity must be positive")
	ErrQuantityExceedsFleet      = errors.New("rental: item quantity exceeds product fleet size")
	ErrUnknownFulfillmentStatus  = errors.New("rental: unknown fulfillment status")
	ErrMixedItemCurrencies       = errors.New("rental: items priced in different currencies")
)

type RentalID string

type ItemID string

// FulfillmentStatus is the physical lifecycle of a booking. It is independent
// from the invoice status; the two only meet in the roll-up rule.
type FulfillmentStatus string

const (
	StatusQuotation     FulfillmentStatus = "QUOTATION"
	StatusQuotationSent FulfillmentStatus = "QUOTATION_SENT"
	StatusReserved      FulfillmentStatus = "RESERVED"
	StatusPickedUp      FulfillmentStatus = "PICKED_UP"
	StatusReturned      FulfillmentStatus = "RETURNED"
	StatusCancelled     FulfillmentStatus = "CANCELLED"
)

// Valid reports whether the value is a known fulfillment status.
func (s FulfillmentStatus) Valid() bool {
	switch s {
	case StatusQuotation, StatusQuotationSent, StatusReserved, StatusPickedUp, StatusReturned, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses admit no further fulfillment transitions.
func (s FulfillmentStatus) Terminal() bool {
	return s == StatusReturned || s == StatusCancelled
}

// Committed statuses hold physical inventory and count against the
// availability ledger. Quotations never do.
func (s FulfillmentStatus) Committed() bool {
	return s == StatusReserved || s == StatusPickedUp
}

// InvoiceStatus tracks billing completeness for one item, or the roll-up of
// all items on the parent rental.
type InvoiceStatus string

const (
	InvoiceNothing InvoiceStatus = "NOTHING_TO_INVOICE"
	InvoicePending InvoiceStatus = "TO_INVOICE"
	InvoiceFull    InvoiceStatus = "FULLY_INVOICED"
)

// Item is one line of a rental: one product, quantity, window and rental
// type. UnitPrice and TotalPrice are snapshots taken at booking time; a later
// pricelist change never alters an already-booked line.
type Item struct {
	ID            ItemID
	ProductID     catalog.ProductID
	Quantity      int
	RentalType    pricing.RentalType
	Window        daterange.DateRange
	UnitPrice     money.Money
	TotalPrice    money.Money
	InvoiceStatus InvoiceStatus
}

// Rental is the unit of atomic commitment: all items reserve and release
// together, while each item tracks invoice completeness on its own.
type Rental struct {
	ID                RentalID
	CustomerID        string
	PricelistID       pricing.PricelistID
	FulfillmentStatus FulfillmentStatus
	Items             []Item
	Totals            pricing.Totals
	PickedUpAt        *time.Time
	ReturnedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int64
	events.EventRecorder
}

// ItemParams describes a priced candidate line for a new rental.
type ItemParams struct {
	ID         ItemID
	Product    *catalog.Product
	Quantity   int
	RentalType pricing.RentalType
	Window     daterange.DateRange
	Quote      pricing.Quote
}

type CreateParams struct {
	ID          RentalID
	CustomerID  string
	PricelistID pricing.PricelistID
	Items       []ItemParams
	Rates       pricing.RateConfig
	CreatedAt   time.Time
}

// NewQuotation builds a rental in the non-binding QUOTATION state. A
// quotation consumes no inventory; the hold only materializes at Reserve.
func NewQuotation(params CreateParams) (*Rental, error) {
	if params.CustomerID == "" {
		return nil, errors.New("rental: customer id required")
	}
	if len(params.Items) == 0 {
		return nil, ErrNoItems
	}
	now := params.CreatedAt.UTC()
	r := &Rental{
		ID:                params.ID,
		CustomerID:        params.CustomerID,
		PricelistID:       params.PricelistID,
		FulfillmentStatus: StatusQuotation,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, ip := range params.Items {
		if ip.Quantity <= 0 {
			return nil, ErrInvalidItemQuantity
		}
		if ip.Product == nil {
			return nil, catalog.ErrProductNotFound
		}
		if ip.Quantity > ip.Product.TotalQuantity {
			return nil, ErrQuantityExceedsFleet
		}
		r.Items = append(r.Items, Item{
			ID:            ip.ID,
			ProductID:     ip.Product.ID,
			Quantity:      ip.Quantity,
			RentalType:    ip.RentalType,
			Window:        ip.Window,
			UnitPrice:     ip.Quote.UnitPrice,
			TotalPrice:    ip.Quote.TotalPrice,
			InvoiceStatus: InvoiceNothing,
		})
	}
	if err := r.recalculateTotals(params.Rates); err != nil {
		return nil, err
	}
	r.Record(QuotationCreated{RentalID: r.ID, CustomerID: r.CustomerID, Total: r.Totals.GrandTotal, At: now})
	return r, nil
}

// MarkSent flags the quotation as delivered to the customer. Still non-binding.
func (r *Rental) MarkSent(now time.Time) error {
	if r.FulfillmentStatus != StatusQuotation {
		return ErrIllegalTransition
	}
	r.FulfillmentStatus = StatusQuotationSent
	r.touch(now)
	r.Record(QuotationSent{RentalID: r.ID, At: r.UpdatedAt})
	return nil
}

// Reserve turns the quotation into a binding hold. Callers must have
// re-checked availability inside the same transaction before invoking this;
// the quote-time check is stale by definition.
func (r *Rental) Reserve(now time.Time) error {
	if r.FulfillmentStatus != StatusQuotation && r.FulfillmentStatus != StatusQuotationSent {
		return ErrIllegalTransition
	}
	r.FulfillmentStatus = StatusReserved
	r.touch(now)
	r.Record(RentalReserved{RentalID: r.ID, CustomerID: r.CustomerID, Items: r.itemSnapshots(), At: r.UpdatedAt})
	return nil
}

// PickUp records the handover. Inventory is already committed, so the only
// effect is the status and the actual pickup timestamp.
func (r *Rental) PickUp(now time.Time) error {
	if r.FulfillmentStatus != StatusReserved {
		return ErrIllegalTransition
	}
	at := now.UTC()
	r.FulfillmentStatus = StatusPickedUp
	r.PickedUpAt = &at
	r.touch(now)
	r.Record(RentalPickedUp{RentalID: r.ID, At: at})
	return nil
}

// Return closes the rental and releases the committed units; items stop
// counting in the ledger from the persisted instant of this transition.
func (r *Rental) Return(now time.Time) error {
	if r.FulfillmentStatus != StatusPickedUp {
		return ErrIllegalTransition
	}
	at := now.UTC()
	r.FulfillmentStatus = StatusReturned
	r.ReturnedAt = &at
	r.touch(now)
	r.Record(RentalReturned{RentalID: r.ID, At: at})
	return nil
}

// Cancel is reachable from any non-terminal state. Releasing inventory is a
// no-op when the rental was still a quotation.
func (r *Rental) Cancel(reason string, now time.Time) error {
	if r.FulfillmentStatus.Terminal() {
		return ErrIllegalTransition
	}
	released := r.FulfillmentStatus.Committed()
	r.FulfillmentStatus = StatusCancelled
	r.touch(now)
	r.Record(RentalCancelled{RentalID: r.ID, Reason: reason, ReleasedInventory: released, At: r.UpdatedAt})
	return nil
}

// TransitionTo dispatches a requested target status to the matching
// transition. Reserve targets additionally require the caller to re-check
// availability first.
func (r *Rental) TransitionTo(target FulfillmentStatus, now time.Time) error {
	switch target {
	case StatusQuotationSent:
		return r.MarkSent(now)
	case StatusReserved:
		return r.Reserve(now)
	case StatusPickedUp:
		return r.PickUp(now)
	case StatusReturned:
		return r.Return(now)
	case StatusCancelled:
		return r.Cancel("", now)
	case StatusQuotation:
		return ErrIllegalTransition
	default:
		return ErrUnknownFulfillmentStatus
	}
}

// MarkItemsInvoiced moves items from NOTHING_TO_INVOICE to TO_INVOICE, e.g.
// when an invoice document is issued. An empty id list targets every item.
func (r *Rental) MarkItemsInvoiced(itemIDs []ItemID, now time.Time) error {
	return r.shiftInvoiceStatus(itemIDs, InvoiceNothing, InvoicePending, now)
}

// MarkItemsPaid moves items from TO_INVOICE to FULLY_INVOICED once the
// external payment event arrives. An empty id list targets every item.
func (r *Rental) MarkItemsPaid(itemIDs []ItemID, now time.Time) error {
	return r.shiftInvoiceStatus(itemIDs, InvoicePending, InvoiceFull, now)
}

func (r *Rental) shiftInvoiceStatus(itemIDs []ItemID, from, to InvoiceStatus, now time.Time) error {
	targets := make(map[ItemID]bool, len(itemIDs))
	for _, id := range itemIDs {
		targets[id] = false
	}
	changed := false
	for i := range r.Items {
		item := &r.Items[i]
		if len(itemIDs) > 0 {
			if _, ok := targets[item.ID]; !ok {
				continue
			}
			targets[item.ID] = true
		}
		if item.InvoiceStatus != from {
			return ErrIllegalInvoiceTransition
		}
		item.InvoiceStatus = to
		changed = true
	}
	for _, seen := range targets {
		if !seen {
			return ErrItemNotFound
		}
	}
	if !changed {
		return ErrItemNotFound
	}
	r.touch(now)
	r.Record(InvoiceStatusChanged{RentalID: r.ID, Status: r.InvoiceStatus(), At: r.UpdatedAt})
	return nil
}

// InvoiceStatus is the derived roll-up over the items. It is recomputed on
// every read and never stored as an independent source of truth.
func (r *Rental) InvoiceStatus() InvoiceStatus {
	if len(r.Items) == 0 {
		return InvoiceNothing
	}
	allNothing := true
	allFull := true
	for _, item := range r.Items {
		if item.InvoiceStatus != InvoiceNothing {
			allNothing = false
		}
		if item.InvoiceStatus != InvoiceFull {
			allFull = false
		}
	}
	switch {
	case allFull:
		return InvoiceFull
	case allNothing:
		return InvoiceNothing
	default:
		return InvoicePending
	}
}

// recalculateTotals derives the rental money roll-up from item snapshots.
func (r *Rental) recalculateTotals(rates pricing.RateConfig) error {
	if len(r.Items) == 0 {
		return ErrNoItems
	}
	subtotal := money.Money{Amount: 0, Currency: r.Items[0].TotalPrice.Currency}
	for _, item := range r.Items {
		sum, err := subtotal.Add(item.TotalPrice)
		if err != nil {
			return ErrMixedItemCurrencies
		}
		subtotal = sum
	}
	totals, err := rates.Breakdown(subtotal)
	if err != nil {
		return err
	}
	r.Totals = totals
	return nil
}

func (r *Rental) touch(now time.Time) {
	r.UpdatedAt = now.UTC()
}

func (r *Rental) itemSnapshots() []ItemSnapshot {
	out := make([]ItemSnapshot, 0, len(r.Items))
	for _, item := range r.Items {
		out = append(out, ItemSnapshot{
			ItemID:    item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Window:    item.Window,
		})
	}
	return out
}

// Repository persists rentals with optimistic version checks.
type Repository interface {
	ByID(ctx context.Context, id RentalID) (*Rental, error)
	Save(ctx context.Context, rental *Rental) error
	ListByCustomer(ctx context.Context, customerID string) ([]*Rental, error)
}
