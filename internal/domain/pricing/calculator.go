package pricing

import (
	"context"
	"errors"

	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

var ErrInvalidLineQuantity = errors.New("pricing: quantity must be positive")

// QuoteInput describes one candidate booking line.
type QuoteInput struct {
	PricelistID PricelistID
	Product     *catalog.Product
	RentalType  RentalType
	Quantity    int
	Window      daterange.DateRange
}

// Quote is the server-authoritative price for a line. Any client-side number
// is a display estimate and must be re-derived through this path before commit.
type Quote struct {
	UnitPrice  money.Money
	TotalPrice money.Money
	Units      int
	Currency   string
}

// Calculator resolves the rate card and prices a line deterministically.
// It holds no mutable state; identical inputs always produce identical quotes.
type Calculator struct {
	Rates Resolver
}

func NewCalculator(rates Resolver) *Calculator {
	return &Calculator{Rates: rates}
}

// Quote prices a single line. Fails with ErrRateNotFound when the rate card
// has no entry and ErrDurationOutOfBounds when the billable span violates the
// resolved min/max day policy.
func (c *Calculator) Quote(ctx context.Context, input QuoteInput) (Quote, error) {
	if input.Quantity <= 0 {
		return Quote{}, ErrInvalidLineQuantity
	}
	if input.Product == nil {
		return Quote{}, catalog.ErrProductNotFound
	}
	item, err := c.Rates.Resolve(ctx, input.PricelistID, input.Product.ID, input.RentalType)
	if err != nil {
		return Quote{}, err
	}
	return PriceLine(item, input.Product, input.Window, input.Quantity)
}

// PriceLine computes the price for an already-resolved rate card entry.
// Exposed separately so a handler holding the entry inside a transaction
// does not resolve it twice.
func PriceLine(item PricelistItem, product *catalog.Product, window daterange.DateRange, quantity int) (Quote, error) {
	if quantity <= 0 {
		return Quote{}, ErrInvalidLineQuantity
	}
	units, err := BillableUnits(window, item.RentalType)
	if err != nil {
		return Quote{}, err
	}
	if err := checkBounds(item, product, window.Days()); err != nil {
		return Quote{}, err
	}
	unitPrice := item.PerUnit()
	return Quote{
		UnitPrice:  unitPrice,
		TotalPrice: unitPrice.Multiply(int64(units) * int64(quantity)),
		Units:      units,
		Currency:   unitPrice.Currency,
	}, nil
}

// checkBounds enforces the min/max day policy against the whole-day span of
// the window, not the billable unit count, so a 2-unit WEEKLY rental of 8
// days is judged as 8 days.
func checkBounds(item PricelistItem, product *catalog.Product, days int) error {
	min, max := item.Bounds(product)
	if min > 0 && days < min {
		return ErrDurationOutOfBounds
	}
	if max > 0 && days > max {
		return ErrDurationOutOfBounds
	}
	return nil
}

// RateConfig carries the policy rates applied once per rental. It is loaded
// from configuration and threaded through; call sites never restate the
// percentages.
type RateConfig struct {
	DepositRate money.BasisPoints
	TaxRate     money.BasisPoints
}

// DefaultRates mirror the current business policy: 20% refundable security
// deposit and 8% tax, both over the item subtotal.
func DefaultRates() RateConfig {
	return RateConfig{DepositRate: 2000, TaxRate: 800}
}

// Totals is the rental-level money roll-up derived from the item subtotal.
type Totals struct {
	Subtotal        money.Money
	SecurityDeposit money.Money
	Tax             money.Money
	GrandTotal      money.Money
}

// Breakdown derives deposit, tax and grand total from a subtotal. This is the
// single source of truth for the aggregate math.
func (r RateConfig) Breakdown(subtotal money.Money) (Totals, error) {
	deposit := subtotal.Rate(r.DepositRate)
	tax := subtotal.Rate(r.TaxRate)
	grand, err := subtotal.Add(deposit)
	if err != nil {
		return Totals{}, err
	}
	grand, err = grand.Add(tax)
	if err != nil {
		return Totals{}, err
	}
	return Totals{
		Subtotal:        subtotal,
		SecurityDeposit: deposit,
		Tax:             tax,
		GrandTotal:      grand,
	}, nil
}
