package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stockmaster/stockmaster/internal/app"
	"github.com/stockmaster/stockmaster/internal/dashboard"
	"github.com/stockmaster/stockmaster/internal/documents"
	"github.com/stockmaster/stockmaster/internal/masterdata/categories"
	"github.com/stockmaster/stockmaster/internal/masterdata/locations"
	"github.com/stockmaster/stockmaster/internal/masterdata/products"
	"github.com/stockmaster/stockmaster/internal/masterdata/warehouses"
	"github.com/stockmaster/stockmaster/internal/observability"
	"github.com/stockmaster/stockmaster/internal/platform/db"
	"github.com/stockmaster/stockmaster/internal/shared"
	"github.com/stockmaster/stockmaster/internal/stock"
	"github.com/stockmaster/stockmaster/jobs"
	"github.com/stockmaster/stockmaster/migrations"
)

// completionFanout forwards document completion events to every interested
// subsystem.
type completionFanout struct {
	dashboard *dashboard.Service
	metrics   *observability.Metrics
}

func (c completionFanout) DocumentCompleted(ctx context.Context, kind documents.Kind, id int64, reference string) {
	if c.dashboard != nil {
		c.dashboard.DocumentCompleted(ctx, kind, id, reference)
	}
	if c.metrics != nil {
		c.metrics.DocumentCompleted(string(kind))
	}
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, cfg.PGDSN, migrations.FS); err != nil {
			logger.Error("run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	dashboardService := dashboard.NewService(logger, dashboard.NewRepository(dbpool), dashboardCache)
	go func() {
		if err := dashboardCache.ListenForInvalidation(ctx); err != nil {
			logger.Warn("dashboard cache listener stopped", slog.Any("error", err))
		}
	}()

	completion := completionFanout{dashboard: dashboardService, metrics: metrics}

	documentsRepo := documents.NewRepository(dbpool)
	documentsService := documents.NewService(documentsRepo, auditLogger, idempotencyStore, completion)

	stockService := stock.NewService(stock.NewRepository(dbpool), auditLogger)

	productService := products.NewService(products.NewRepository(dbpool))
	categoryService := categories.NewService(categories.NewRepository(dbpool))
	warehouseService := warehouses.NewService(warehouses.NewRepository(dbpool))
	locationService := locations.NewService(locations.NewRepository(dbpool))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		ReceiptHandler:    documents.NewHandler(logger, documentsService, documents.KindReceipt),
		DeliveryHandler:   documents.NewHandler(logger, documentsService, documents.KindDelivery),
		TransferHandler:   documents.NewHandler(logger, documentsService, documents.KindTransfer),
		AdjustmentHandler: documents.NewHandler(logger, documentsService, documents.KindAdjustment),
		MovesHandler:      documents.NewMovesHandler(logger, documentsService),
		StockHandler:      stock.NewHandler(logger, stockService),
		ProductHandler:    products.NewHandler(logger, productService),
		CategoryHandler:   categories.NewHandler(logger, categoryService),
		WarehouseHandler:  warehouses.NewHandler(logger, warehouseService),
		LocationHandler:   locations.NewHandler(logger, locationService),
		DashboardHandler:  dashboard.NewHandler(logger, dashboardService),
		JobHandler:        jobs.NewHandler(inspector, jobClient, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
