package dto

import (
	"time"

	domainavailability "rentdesk/internal/domain/availability"
	domainrental "rentdesk/internal/domain/rental"
	"rentdesk/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(m money.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency}
}

type AvailabilityResult struct {
	ProductID string `json:"product_id"`
	Available bool   `json:"available"`
	FreeUnits int    `json:"free_units"`
}

type QuoteResult struct {
	UnitPrice  MoneyDTO `json:"unit_price"`
	TotalPrice MoneyDTO `json:"total_price"`
	Units      int      `json:"billable_units"`
	Currency   string   `json:"currency"`
}

type CalendarDay struct {
	Day       time.Time `json:"day"`
	FreeUnits int       `json:"free_units"`
}

type CalendarResult struct {
	ProductID string        `json:"product_id"`
	Days      []CalendarDay `json:"days"`
}

func MapCalendar(productID string, days []domainavailability.DayAvailability) CalendarResult {
	out := CalendarResult{ProductID: productID, Days: make([]CalendarDay, 0, len(days))}
	for _, d := range days {
		out.Days = append(out.Days, CalendarDay{Day: d.Day, FreeUnits: d.FreeUnits})
	}
	return out
}

type RentalItemView struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Quantity      int       `json:"quantity"`
	RentalType    string    `json:"rental_type"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	UnitPrice     MoneyDTO  `json:"unit_price"`
	TotalPrice    MoneyDTO  `json:"total_price"`
	InvoiceStatus string    `json:"invoice_status"`
}

type RentalView struct {
	ID                string           `json:"id"`
	CustomerID        string           `json:"customer_id"`
	FulfillmentStatus string           `json:"fulfillment_status"`
	InvoiceStatus     string           `json:"invoice_status"`
	Items             []RentalItemView `json:"items"`
	Subtotal          MoneyDTO         `json:"subtotal"`
	SecurityDeposit   MoneyDTO         `json:"security_deposit"`
	Tax               MoneyDTO         `json:"tax"`
	GrandTotal        MoneyDTO         `json:"grand_total"`
	PickedUpAt        *time.Time       `json:"picked_up_at,omitempty"`
	ReturnedAt        *time.Time       `json:"returned_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

type RentalCollection struct {
	Items []RentalView `json:"items"`
}

func MapRental(r *domainrental.Rental) RentalView {
	view := RentalView{
		ID:                string(r.ID),
		CustomerID:        r.CustomerID,
		FulfillmentStatus: string(r.FulfillmentStatus),
		InvoiceStatus:     string(r.InvoiceStatus()),
		Items:             make([]RentalItemView, 0, len(r.Items)),
		Subtotal:          MapMoney(r.Totals.Subtotal),
		SecurityDeposit:   MapMoney(r.Totals.SecurityDeposit),
		Tax:               MapMoney(r.Totals.Tax),
		GrandTotal:        MapMoney(r.Totals.GrandTotal),
		PickedUpAt:        r.PickedUpAt,
		ReturnedAt:        r.ReturnedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	for _, item := range r.Items {
		view.Items = append(view.Items, RentalItemView{
			ID:            string(item.ID),
			ProductID:     string(item.ProductID),
			Quantity:      item.Quantity,
			RentalType:    string(item.RentalType),
			StartDate:     item.Window.Start,
			EndDate:       item.Window.End,
			UnitPrice:     MapMoney(item.UnitPrice),
			TotalPrice:    MapMoney(item.TotalPrice),
			InvoiceStatus: string(item.InvoiceStatus),
		})
	}
	return view
}
