package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/infra/config"
	"rentdesk/internal/infra/obs"
)

type AvailabilityHTTP interface {
	Check(c *gin.Context)
	Calendar(c *gin.Context)
}

type PricingHTTP interface {
	Quote(c *gin.Context)
}

type RentalHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Transition(c *gin.Context)
	MarkInvoiced(c *gin.Context)
	MarkPaid(c *gin.Context)
}

type QuotationHTTP interface {
	Create(c *gin.Context)
	Send(c *gin.Context)
}

type Handlers struct {
	Availability AvailabilityHTTP
	Pricing      PricingHTTP
	Rental       RentalHTTP
	Quotation    QuotationHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Availability != nil {
		api.GET("/products/:id/availability", h.Availability.Check)
		api.GET("/products/:id/calendar", h.Availability.Calendar)
	}
	if h.Pricing != nil {
		api.POST("/quotes", h.Pricing.Quote)
	}
	if h.Rental != nil {
		api.POST("/rentals", h.Rental.Create)
		api.GET("/rentals", h.Rental.List)
		api.GET("/rentals/:id", h.Rental.Get)
		api.POST("/rentals/:id/status", h.Rental.Transition)
		api.POST("/rentals/:id/invoices", h.Rental.MarkInvoiced)
		api.POST("/rentals/:id/payments", h.Rental.MarkPaid)
	}
	if h.Quotation != nil {
		api.POST("/quotations", h.Quotation.Create)
		api.POST("/quotations/:id/send", h.Quotation.Send)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
