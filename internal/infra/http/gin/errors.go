package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/app/middleware"
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/rental"
	"rentdesk/internal/domain/shared/daterange"
)

// statusFor maps domain and pipeline errors onto HTTP status codes so
// clients can distinguish retryable conflicts from bad requests.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, rental.ErrRentalNotFound),
		errors.Is(err, rental.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, availability.ErrInsufficientAvailability),
		errors.Is(err, rental.ErrIllegalTransition),
		errors.Is(err, rental.ErrIllegalInvoiceTransition),
		errors.Is(err, middleware.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, pricing.ErrRateNotFound),
		errors.Is(err, pricing.ErrDurationOutOfBounds),
		errors.Is(err, rental.ErrQuantityExceedsFleet),
		errors.Is(err, rental.ErrMixedItemCurrencies):
		return http.StatusUnprocessableEntity
	case errors.Is(err, daterange.ErrInvalidWindow),
		errors.Is(err, pricing.ErrUnknownRentalType),
		errors.Is(err, rental.ErrUnknownFulfillmentStatus),
		errors.Is(err, availability.ErrInvalidRequestedQuantity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	if status == http.StatusInternalServerError {
		body = gin.H{"error": "internal server error"}
	}
	c.AbortWithStatusJSON(status, body)
}
