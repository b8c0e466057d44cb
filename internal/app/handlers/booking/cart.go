package booking

import (
	"errors"
	"time"

	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/shared/daterange"
)

var (
	ErrEmptyCart       = errors.New("booking: cart has no lines")
	ErrInvalidCartLine = errors.New("booking: cart line invalid")
)

// CartLine is one candidate booking line as submitted by the client. Prices
// are deliberately absent: any number the client displayed is an estimate and
// the server re-derives everything before commit.
type CartLine struct {
	ProductID  string    `json:"product_id"`
	RentalType string    `json:"rental_type"`
	Quantity   int       `json:"quantity"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

// Cart is the explicit, serializable value object for one checkout. It is
// passed through request bodies, never kept as shared mutable state.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// resolvedLine is a cart line with validated domain values attached.
type resolvedLine struct {
	ProductID  catalog.ProductID
	RentalType pricing.RentalType
	Quantity   int
	Window     daterange.DateRange
}

// resolve validates every line and converts it into domain values.
func (c Cart) resolve() ([]resolvedLine, error) {
	if len(c.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	out := make([]resolvedLine, 0, len(c.Lines))
	for _, line := range c.Lines {
		if line.ProductID == "" || line.Quantity <= 0 {
			return nil, ErrInvalidCartLine
		}
		rentalType := pricing.RentalType(line.RentalType)
		if !rentalType.Valid() {
			return nil, pricing.ErrUnknownRentalType
		}
		window, err := daterange.New(line.StartDate, line.EndDate)
		if err != nil {
			return nil, err
		}
		out = append(out, resolvedLine{
			ProductID:  catalog.ProductID(line.ProductID),
			RentalType: rentalType,
			Quantity:   line.Quantity,
			Window:     window,
		})
	}
	return out, nil
}

// productIDs returns the distinct products in the cart, for lock acquisition.
func productIDs(lines []resolvedLine) []catalog.ProductID {
	seen := make(map[catalog.ProductID]struct{}, len(lines))
	out := make([]catalog.ProductID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		out = append(out, line.ProductID)
	}
	return out
}
