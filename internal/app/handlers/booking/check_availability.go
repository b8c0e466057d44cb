package booking

import (
	"context"
	"errors"
	"time"

	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/uow"
	domainavailability "rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/shared/daterange"
)

const (
	checkAvailabilityKey = "availability.check"
	calendarKey          = "availability.calendar"
)

type CheckAvailabilityQuery struct {
	ProductID string
	StartDate time.Time
	EndDate   time.Time
	Quantity  int
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.AvailabilityResult, error) {
	if q.Quantity <= 0 {
		return dto.AvailabilityResult{}, domainavailability.ErrInvalidRequestedQuantity
	}
	window, err := daterange.New(q.StartDate, q.EndDate)
	if err != nil {
		return dto.AvailabilityResult{}, err
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.AvailabilityResult{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	ledger := domainavailability.NewLedger(unit.Products(), unit.Commitments())
	free, err := ledger.CheckQuantity(execCtx, catalog.ProductID(q.ProductID), window, q.Quantity)
	if err != nil && !errors.Is(err, domainavailability.ErrInsufficientAvailability) {
		return dto.AvailabilityResult{}, err
	}
	return dto.AvailabilityResult{
		ProductID: q.ProductID,
		Available: err == nil,
		FreeUnits: free,
	}, nil
}

type CalendarQuery struct {
	ProductID string
	StartDate time.Time
	EndDate   time.Time
}

func (q CalendarQuery) Key() string { return calendarKey }

type CalendarHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *CalendarHandler) Handle(ctx context.Context, q CalendarQuery) (dto.CalendarResult, error) {
	window, err := daterange.New(q.StartDate, q.EndDate)
	if err != nil {
		return dto.CalendarResult{}, err
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.CalendarResult{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	ledger := domainavailability.NewLedger(unit.Products(), unit.Commitments())
	days, err := ledger.Calendar(execCtx, catalog.ProductID(q.ProductID), window)
	if err != nil {
		return dto.CalendarResult{}, err
	}
	return dto.MapCalendar(q.ProductID, days), nil
}

var _ queries.Handler[CheckAvailabilityQuery, dto.AvailabilityResult] = (*CheckAvailabilityHandler)(nil)
var _ queries.Handler[CalendarQuery, dto.CalendarResult] = (*CalendarHandler)(nil)
