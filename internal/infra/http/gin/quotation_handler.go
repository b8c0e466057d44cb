package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/handlers/booking"
)

type QuotationHandler struct {
	Commands commands.Bus
}

func NewQuotationHandler(cmdBus commands.Bus) *QuotationHandler {
	return &QuotationHandler{Commands: cmdBus}
}

type createQuotationRequest struct {
	CustomerID  string       `json:"customer_id" binding:"required"`
	PricelistID string       `json:"pricelist_id" binding:"required"`
	Cart        booking.Cart `json:"cart" binding:"required"`
}

func (h *QuotationHandler) Create(c *gin.Context) {
	var req createQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := commands.Dispatch[booking.CreateQuotationCommand, *booking.QuotationResult](
		c.Request.Context(), h.Commands, booking.CreateQuotationCommand{
			CommandID:       uuid.NewString(),
			CustomerID:      req.CustomerID,
			PricelistID:     req.PricelistID,
			Cart:            req.Cart,
			IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
		})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *QuotationHandler) Send(c *gin.Context) {
	result, err := commands.Dispatch[booking.SendQuotationCommand, *booking.StatusResult](
		c.Request.Context(), h.Commands, booking.SendQuotationCommand{
			RentalID: c.Param("id"),
		})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
