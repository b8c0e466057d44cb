package booking

import (
	"context"
	"time"

	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/catalog"
	domainpricing "rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/shared/daterange"
)

const quoteKey = "pricing.quote"

// QuoteQuery prices a single candidate line without touching state. Calling
// it twice with identical inputs yields identical results.
type QuoteQuery struct {
	ProductID   string
	PricelistID string
	RentalType  string
	Quantity    int
	StartDate   time.Time
	EndDate     time.Time
}

func (q QuoteQuery) Key() string { return quoteKey }

type QuoteHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *QuoteHandler) Handle(ctx context.Context, q QuoteQuery) (dto.QuoteResult, error) {
	rentalType := domainpricing.RentalType(q.RentalType)
	if !rentalType.Valid() {
		return dto.QuoteResult{}, domainpricing.ErrUnknownRentalType
	}
	window, err := daterange.New(q.StartDate, q.EndDate)
	if err != nil {
		return dto.QuoteResult{}, err
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.QuoteResult{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	product, err := unit.Products().ByID(execCtx, catalog.ProductID(q.ProductID))
	if err != nil {
		return dto.QuoteResult{}, err
	}
	calculator := domainpricing.NewCalculator(unit.Rates())
	quote, err := calculator.Quote(execCtx, domainpricing.QuoteInput{
		PricelistID: domainpricing.PricelistID(q.PricelistID),
		Product:     product,
		RentalType:  rentalType,
		Quantity:    q.Quantity,
		Window:      window,
	})
	if err != nil {
		return dto.QuoteResult{}, err
	}
	return dto.QuoteResult{
		UnitPrice:  dto.MapMoney(quote.UnitPrice),
		TotalPrice: dto.MapMoney(quote.TotalPrice),
		Units:      quote.Units,
		Currency:   quote.Currency,
	}, nil
}

var _ queries.Handler[QuoteQuery, dto.QuoteResult] = (*QuoteHandler)(nil)
