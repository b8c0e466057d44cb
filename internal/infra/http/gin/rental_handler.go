package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/booking"
	"rentdesk/internal/app/queries"
)

type RentalHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

func NewRentalHandler(cmdBus commands.Bus, queryBus queries.Bus) *RentalHandler {
	return &RentalHandler{Commands: cmdBus, Queries: queryBus}
}

type createRentalRequest struct {
	CustomerID  string       `json:"customer_id" binding:"required"`
	PricelistID string       `json:"pricelist_id" binding:"required"`
	Cart        booking.Cart `json:"cart" binding:"required"`
}

func (h *RentalHandler) Create(c *gin.Context) {
	var req createRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := commands.Dispatch[booking.CreateReservationCommand, *booking.CreateReservationResult](
		c.Request.Context(), h.Commands, booking.CreateReservationCommand{
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

func (h *RentalHandler) Get(c *gin.Context) {
	result, err := queries.Ask[booking.GetRentalQuery, dto.RentalView](
		c.Request.Context(), h.Queries, booking.GetRentalQuery{RentalID: c.Param("id")})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *RentalHandler) List(c *gin.Context) {
	customerID := c.Query("customer_id")
	if customerID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "customer_id query parameter is required"})
		return
	}
	result, err := queries.Ask[booking.ListCustomerRentalsQuery, dto.RentalCollection](
		c.Request.Context(), h.Queries, booking.ListCustomerRentalsQuery{
			CustomerID: customerID,
			Status:     c.Query("status"),
		})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type transitionRequest struct {
	Target string `json:"target" binding:"required"`
	Reason string `json:"reason"`
}

func (h *RentalHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := commands.Dispatch[booking.TransitionStatusCommand, *booking.StatusResult](
		c.Request.Context(), h.Commands, booking.TransitionStatusCommand{
			RentalID: c.Param("id"),
			Target:   req.Target,
			Reason:   req.Reason,
		})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type invoiceItemsRequest struct {
	ItemIDs []string `json:"item_ids"`
}

func (h *RentalHandler) MarkInvoiced(c *gin.Context) {
	var req invoiceItemsRequest
	if err := bindOptionalBody(c, &req); err != nil {
		return
	}
	result, err := commands.Dispatch[booking.MarkInvoicedCommand, *booking.InvoiceStatusResult](
		c.Request.Context(), h.Commands, booking.MarkInvoicedCommand{
			RentalID: c.Param("id"),
			ItemIDs:  req.ItemIDs,
		})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *RentalHandler) MarkPaid(c *gin.Context) {
	var req invoiceItemsRequest
	if err := bindOptionalBody(c, &req); err != nil {
		return
	}
	result, err := commands.Dispatch[booking.MarkPaidCommand, *booking.InvoiceStatusResult](
		c.Request.Context(), h.Commands, booking.MarkPaidCommand{
			RentalID: c.Param("id"),
			ItemIDs:  req.ItemIDs,
		})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// bindOptionalBody binds JSON when a body is present; an empty body means
// "apply to all items".
func bindOptionalBody(c *gin.Context, out any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(out); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return err
	}
	return nil
}
