package ginserver

import (
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/booking"
	"rentdesk/internal/app/queries"
)

type PricingHandler struct {
	Queries queries.Bus
}

func NewPricingHandler(bus queries.Bus) *PricingHandler {
	return &PricingHandler{Queries: bus}
}

type quoteRequest struct {
	ProductID   string    `json:"product_id" binding:"required"`
	PricelistID string    `json:"pricelist_id" binding:"required"`
	RentalType  string    `json:"rental_type" binding:"required"`
	Quantity    int       `json:"quantity" binding:"required"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	EndDate     time.Time `json:"end_date" binding:"required"`
}

func (h *PricingHandler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := queries.Ask[booking.QuoteQuery, dto.QuoteResult](
		c.Request.Context(), h.Queries, booking.QuoteQuery{
			ProductID:   req.ProductID,
			PricelistID: req.PricelistID,
			RentalType:  req.RentalType,
			Quantity:    req.Quantity,
			StartDate:   req.StartDate,
			EndDate:     req.EndDate,
		})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parsePositiveInt(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be a positive integer"})
		return 0, false
	}
	return n, true
}
