package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/handlers/booking"
	"rentdesk/internal/app/middleware"
	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/shared/money"
	"rentdesk/internal/infra/broker/kafka"
	"rentdesk/internal/infra/config"
	"rentdesk/internal/infra/db/postgres"
	ginserver "rentdesk/internal/infra/http/gin"
	"rentdesk/internal/infra/obs"
	infraoutbox "rentdesk/internal/infra/outbox"
	"rentdesk/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	backend, err := buildBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "error", err, "mode", cfg.StorageMode)
		os.Exit(1)
	}
	defer backend.close()

	cmdBus := buildCommandBus(cfg, logger, backend)
	queryBus := buildQueryBus(logger, backend)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: backend.ready,
	}, ginserver.Handlers{
		Availability: ginserver.NewAvailabilityHandler(queryBus),
		Pricing:      ginserver.NewPricingHandler(queryBus),
		Rental:       ginserver.NewRentalHandler(cmdBus, queryBus),
		Quotation:    ginserver.NewQuotationHandler(cmdBus),
	})

	startOutboxWorker(ctx, cfg, logger, backend)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

// backend bundles the storage-mode specific pieces behind one seam so the
// buses wire identically for memory and postgres.
type backend struct {
	factory     uow.UoWFactory
	outbox      appoutbox.Outbox
	outboxStore infraoutbox.Store
	idempotency middleware.IdempotencyStore
	ready       func() error
	close       func()
}

func buildBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.StorageMode {
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return backend{}, err
		}
		if err := postgres.Migrate(db); err != nil {
			_ = db.Close()
			return backend{}, err
		}
		box := postgres.NewOutbox(db, cfg.RetryBackoff)
		return backend{
			factory:     postgres.NewFactory(db),
			outbox:      box,
			outboxStore: box,
			idempotency: postgres.NewIdempotencyStore(db, cfg.IdempotencyTTL),
			ready:       db.Ping,
			close:       func() { _ = db.Close() },
		}, nil
	default:
		store := memory.NewStore()
		seedDemoCatalog(store, cfg.DefaultCurrency)
		logger.Info("memory storage seeded with demo catalog")
		box := memory.NewOutbox()
		return backend{
			factory:     memory.NewFactory(store),
			outbox:      box,
			outboxStore: box,
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			ready:       func() error { return nil },
			close:       func() {},
		}, nil
	}
}

func buildCommandBus(cfg config.Config, logger *slog.Logger, b backend) commands.Bus {
	reg := commands.NewRegistry()
	commands.MustRegister(reg, &booking.CreateReservationHandler{
		UoWFactory: b.factory,
		Rates:      cfg.Rates(),
		Outbox:     b.outbox,
	})
	commands.MustRegister(reg, &booking.CreateQuotationHandler{
		UoWFactory: b.factory,
		Rates:      cfg.Rates(),
		Outbox:     b.outbox,
	})
	commands.MustRegister(reg, &booking.SendQuotationHandler{Outbox: b.outbox})
	commands.MustRegister(reg, &booking.TransitionStatusHandler{Outbox: b.outbox})
	invoicing := &booking.InvoicingHandler{Outbox: b.outbox}
	commands.MustRegister(reg, invoicing.MarkInvoicedCommandHandler())
	commands.MustRegister(reg, invoicing.MarkPaidCommandHandler())

	return middleware.ChainCommands(reg,
		middleware.Validation(middleware.SelfValidation{}),
		middleware.Idempotency(b.idempotency, middleware.JSONResultCodec{}),
		middleware.Retry(cfg.RetryBackoff, logger),
		middleware.Transaction(b.factory, nil),
		middleware.OutboxFlush(b.outbox),
	)
}

func buildQueryBus(logger *slog.Logger, b backend) queries.Bus {
	reg := queries.NewRegistry()
	queries.Register(reg, &booking.CheckAvailabilityHandler{UoWFactory: b.factory})
	queries.Register(reg, &booking.CalendarHandler{UoWFactory: b.factory})
	queries.Register(reg, &booking.QuoteHandler{UoWFactory: b.factory})
	queries.Register(reg, &booking.GetRentalHandler{UoWFactory: b.factory})
	queries.Register(reg, &booking.ListCustomerRentalsHandler{UoWFactory: b.factory, Logger: logger})
	return middleware.ChainQueries(reg,
		middleware.QueryValidation(middleware.SelfValidation{}),
	)
}

func startOutboxWorker(ctx context.Context, cfg config.Config, logger *slog.Logger, b backend) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("outbox worker disabled: no kafka brokers configured")
		return
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		logger.Error("kafka producer init failed", "error", err)
		return
	}
	worker := &infraoutbox.Worker{
		Store:       b.outboxStore,
		Producer:    producer,
		Logger:      logger,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
	}
	go func() {
		defer func() { _ = producer.Close() }()
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox worker stopped", "error", err)
		}
	}()
}

// seedDemoCatalog gives memory mode a usable rate card out of the box.
func seedDemoCatalog(store *memory.Store, currency string) {
	now := time.Now().UTC()
	products := []struct {
		id       catalog.ProductID
		sku      string
		name     string
		quantity int
		minDays  int
		maxDays  int
	}{
		{"prd-excavator", "EXC-230", "Compact excavator", 4, 1, 60},
		{"prd-scaffold", "SCF-012", "Scaffolding tower", 20, 1, 0},
		{"prd-generator", "GEN-055", "Diesel generator 5kW", 8, 0, 90},
	}
	for _, p := range products {
		product, err := catalog.NewProduct(p.id, p.sku, p.name, p.quantity, now)
		if err != nil {
			panic(err)
		}
		product.MinimumRentalDays = p.minDays
		product.MaximumRentalDays = p.maxDays
		store.SeedProduct(product)
	}

	store.SeedPricelist(&pricing.Pricelist{ID: "pl-standard", Name: "Standard", Tier: pricing.TierRegular, Active: true})
	rates := []struct {
		product    catalog.ProductID
		rentalType pricing.RentalType
		price      int64
		discount   int64
	}{
		{"prd-excavator", pricing.Daily, 35000, 0},
		{"prd-excavator", pricing.Weekly, 180000, 15000},
		{"prd-scaffold", pricing.Daily, 4500, 0},
		{"prd-scaffold", pricing.Monthly, 90000, 5000},
		{"prd-generator", pricing.Hourly, 900, 0},
		{"prd-generator", pricing.Daily, 15000, 1000},
	}
	for _, r := range rates {
		store.SeedRate(pricing.PricelistItem{
			PricelistID: "pl-standard",
			ProductID:   r.product,
			RentalType:  r.rentalType,
			Price:       money.Must(r.price, currency),
			Discount:    money.Must(r.discount, currency),
		})
	}
}
