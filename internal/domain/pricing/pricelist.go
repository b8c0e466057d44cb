package pricing

import (
	"context"
	"errors"

	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/shared/money"
)

var (
	ErrRateNotFound        = errors.New("pricing: no pricelist entry for product and rental type")
	ErrDurationOutOfBounds = errors.New("pricing: rental span violates minimum or maximum days")
	ErrUnknownRentalType   = errors.New("pricing: unknown rental type")
)

// RentalType is the billing granularity of a rental line.
type RentalType string

const (
	Hourly  RentalType = "HOURLY"
	Daily   RentalType = "DAILY"
	Weekly  RentalType = "WEEKLY"
	Monthly RentalType = "MONTHLY"
	Yearly  RentalType = "YEARLY"
)

// Valid reports whether the rental type is one of the supported granularities.
func (t RentalType) Valid() bool {
	switch t {
	case Hourly, Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// CustomerTier selects which pricelist applies to a booking.
type CustomerTier string

const (
	TierRegular   CustomerTier = "REGULAR"
	TierVIP       CustomerTier = "VIP"
	TierCorporate CustomerTier = "CORPORATE"
)

type PricelistID string

// Pricelist is a named set of per-product, per-rental-type prices for a
// customer tier. Exactly one pricelist is active per tier at booking time.
type Pricelist struct {
	ID     PricelistID
	Name   string
	Tier   CustomerTier
	Active bool
}

// PricelistItem is the rate card entry keyed by (pricelist, product, rentalType).
// Discount is absolute per billing unit. MinimumDays/MaximumDays override the
// product bounds when non-zero.
type PricelistItem struct {
	PricelistID PricelistID
	ProductID   catalog.ProductID
	RentalType  RentalType
	Price       money.Money
	Discount    money.Money
	MinimumDays int
	MaximumDays int
}

// PerUnit returns the effective per-billing-unit price, flooring at zero
// when the discount exceeds the list price.
func (i PricelistItem) PerUnit() money.Money {
	out, err := i.Price.Sub(i.Discount)
	if err != nil {
		// Discount with a foreign currency is a configuration defect;
		// charge the undiscounted price rather than corrupt the quote.
		return i.Price
	}
	return out.FloorZero()
}

// Bounds resolves the applicable min/max day policy, falling back to the
// product defaults where the item does not override them. Zero max means
// unbounded.
func (i PricelistItem) Bounds(product *catalog.Product) (min, max int) {
	min = i.MinimumDays
	max = i.MaximumDays
	if min == 0 && product != nil {
		min = product.MinimumRentalDays
	}
	if max == 0 && product != nil {
		max = product.MaximumRentalDays
	}
	return min, max
}

// Resolver looks up the applicable rate card entry for a booking line.
type Resolver interface {
	Resolve(ctx context.Context, pricelistID PricelistID, productID catalog.ProductID, rentalType RentalType) (PricelistItem, error)
	ActiveForTier(ctx context.Context, tier CustomerTier) (*Pricelist, error)
}
