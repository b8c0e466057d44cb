package availability

import (
	"context"
	"errors"
	"time"

	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/shared/daterange"
)

var (
	ErrInsufficientAvailability = errors.New("availability: requested quantity exceeds free units for the window")
	ErrInvalidRequestedQuantity = errors.New("availability: requested quantity must be positive")
)

// Repository answers the committed-quantity aggregate: the sum of item
// quantities over rentals in RESERVED or PICKED_UP whose half-open window
// intersects the queried one. There is no separate availability store; this
// is a query over persisted reservations.
type Repository interface {
	CommittedUnits(ctx context.Context, productID catalog.ProductID, window daterange.DateRange) (int, error)
}

// Ledger computes free units for a product and window.
type Ledger struct {
	Products    catalog.Repository
	Commitments Repository
}

func NewLedger(products catalog.Repository, commitments Repository) *Ledger {
	return &Ledger{Products: products, Commitments: commitments}
}

// AvailableUnits returns totalQuantity minus the committed sum for the
// window. The result is never negative.
func (l *Ledger) AvailableUnits(ctx context.Context, productID catalog.ProductID, window daterange.DateRange) (int, error) {
	product, err := l.Products.ByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	committed, err := l.Commitments.CommittedUnits(ctx, productID, window)
	if err != nil {
		return 0, err
	}
	free := product.TotalQuantity - committed
	if free < 0 {
		free = 0
	}
	return free, nil
}

// CheckQuantity verifies quantity units fit in the window, returning the free
// count alongside ErrInsufficientAvailability when they do not.
func (l *Ledger) CheckQuantity(ctx context.Context, productID catalog.ProductID, window daterange.DateRange, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidRequestedQuantity
	}
	free, err := l.AvailableUnits(ctx, productID, window)
	if err != nil {
		return 0, err
	}
	if quantity > free {
		return free, ErrInsufficientAvailability
	}
	return free, nil
}

// DayAvailability is one cell of the calendar projection.
type DayAvailability struct {
	Day       time.Time
	FreeUnits int
}

// Calendar projects free units for each calendar day of the window. The
// projection is derived from the same committed-quantity query and is never
// stored.
func (l *Ledger) Calendar(ctx context.Context, productID catalog.ProductID, window daterange.DateRange) ([]DayAvailability, error) {
	product, err := l.Products.ByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	start := truncateDay(window.Start)
	out := make([]DayAvailability, 0, window.Days())
	for day := start; day.Before(window.End); day = day.AddDate(0, 0, 1) {
		dayWindow := daterange.DateRange{Start: day, End: day.AddDate(0, 0, 1)}
		committed, err := l.Commitments.CommittedUnits(ctx, productID, dayWindow)
		if err != nil {
			return nil, err
		}
		free := product.TotalQuantity - committed
		if free < 0 {
			free = 0
		}
		out = append(out, DayAvailability{Day: day, FreeUnits: free})
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
