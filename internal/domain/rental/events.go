package rental

import (
	"time"

	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

// ItemSnapshot carries the inventory-relevant projection of a line inside
// events, so consumers never need to re-read the aggregate.
type ItemSnapshot struct {
	ItemID    ItemID
	ProductID catalog.ProductID
	Quantity  int
	Window    daterange.DateRange
}

type QuotationCreated struct {
	RentalID   RentalID
	CustomerID string
	Total      money.Money
	At         time.Time
}

func (e QuotationCreated) EventName() string     { return "quotation.created" }
func (e QuotationCreated) AggregateID() string   { return string(e.RentalID) }
func (e QuotationCreated) OccurredAt() time.Time { return e.At }

type QuotationSent struct {
	RentalID RentalID
	At       time.Time
}

func (e QuotationSent) EventName() string     { return "quotation.sent" }
func (e QuotationSent) AggregateID() string   { return string(e.RentalID) }
func (e QuotationSent) OccurredAt() time.Time { return e.At }

type RentalReserved struct {
	RentalID   RentalID
	CustomerID string
	Items      []ItemSnapshot
	At         time.Time
}

func (e RentalReserved) EventName() string     { return "rental.reserved" }
func (e RentalReserved) AggregateID() string   { return string(e.RentalID) }
func (e RentalReserved) OccurredAt() time.Time { return e.At }

type RentalPickedUp struct {
	RentalID RentalID
	At       time.Time
}

func (e RentalPickedUp) EventName() string     { return "rental.picked_up" }
func (e RentalPickedUp) AggregateID() string   { return string(e.RentalID) }
func (e RentalPickedUp) OccurredAt() time.Time { return e.At }

type RentalReturned struct {
	RentalID RentalID
	At       time.Time
}

func (e RentalReturned) EventName() string     { return "rental.returned" }
func (e RentalReturned) AggregateID() string   { return string(e.RentalID) }
func (e RentalReturned) OccurredAt() time.Time { return e.At }

type RentalCancelled struct {
	RentalID          RentalID
	Reason            string
	ReleasedInventory bool
	At                time.Time
}

func (e RentalCancelled) EventName() string     { return "rental.cancelled" }
func (e RentalCancelled) AggregateID() string   { return string(e.RentalID) }
func (e RentalCancelled) OccurredAt() time.Time { return e.At }

type InvoiceStatusChanged struct {
	RentalID RentalID
	Status   InvoiceStatus
	At       time.Time
}

func (e InvoiceStatusChanged) EventName() string     { return "rental.invoice_status_changed" }
func (e InvoiceStatusChanged) AggregateID() string   { return string(e.RentalID) }
func (e InvoiceStatusChanged) OccurredAt() time.Time { return e.At }
