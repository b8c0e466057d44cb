package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/booking"
	"rentdesk/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
}

func NewAvailabilityHandler(bus queries.Bus) *AvailabilityHandler {
	return &AvailabilityHandler{Queries: bus}
}

// Check answers GET /products/:id/availability?start=...&end=...&quantity=N.
// An exhausted window is a regular 200 with available=false, not an error.
func (h *AvailabilityHandler) Check(c *gin.Context) {
	window, ok := parseWindow(c)
	if !ok {
		return
	}
	quantity, ok := parsePositiveInt(c, "quantity", 1)
	if !ok {
		return
	}
	result, err := queries.Ask[booking.CheckAvailabilityQuery, dto.AvailabilityResult](
		c.Request.Context(), h.Queries, booking.CheckAvailabilityQuery{
			ProductID: c.Param("id"),
			StartDate: window.start,
			EndDate:   window.end,
			Quantity:  quantity,
		})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AvailabilityHandler) Calendar(c *gin.Context) {
	window, ok := parseWindow(c)
	if !ok {
		return
	}
	result, err := queries.Ask[booking.CalendarQuery, dto.CalendarResult](
		c.Request.Context(), h.Queries, booking.CalendarQuery{
			ProductID: c.Param("id"),
			StartDate: window.start,
			EndDate:   window.end,
		})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type requestWindow struct {
	start time.Time
	end   time.Time
}

func parseWindow(c *gin.Context) (requestWindow, bool) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
		return requestWindow{}, false
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
		return requestWindow{}, false
	}
	return requestWindow{start: start, end: end}, true
}
