package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockmaster/stockmaster/internal/dashboard"
	"github.com/stockmaster/stockmaster/internal/documents"
	"github.com/stockmaster/stockmaster/internal/masterdata/categories"
	"github.com/stockmaster/stockmaster/internal/masterdata/locations"
	"github.com/stockmaster/stockmaster/internal/masterdata/products"
	"github.com/stockmaster/stockmaster/internal/masterdata/warehouses"
	"github.com/stockmaster/stockmaster/internal/observability"
	"github.com/stockmaster/stockmaster/internal/stock"
	"github.com/stockmaster/stockmaster/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	ReceiptHandler    *documents.Handler
	DeliveryHandler   *documents.Handler
	TransferHandler   *documents.Handler
	AdjustmentHandler *documents.Handler
	MovesHandler      *documents.MovesHandler
	StockHandler      *stock.Handler
	ProductHandler    *products.Handler
	CategoryHandler   *categories.Handler
	WarehouseHandler  *warehouses.Handler
	LocationHandler   *locations.Handler
	DashboardHandler  *dashboard.Handler
	JobHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with StockMaster defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/receipts", params.ReceiptHandler.MountRoutes)
		r.Route("/deliveries", params.DeliveryHandler.MountRoutes)
		r.Route("/transfers", params.TransferHandler.MountRoutes)
		r.Route("/adjustments", params.AdjustmentHandler.MountRoutes)
		r.Route("/stock-moves", params.MovesHandler.MountRoutes)
		r.Route("/stock", params.StockHandler.MountRoutes)
		r.Route("/products", params.ProductHandler.MountRoutes)
		r.Route("/categories", params.CategoryHandler.MountRoutes)
		r.Route("/warehouses", params.WarehouseHandler.MountRoutes)
		r.Route("/locations", params.LocationHandler.MountRoutes)
		r.Route("/dashboard", params.DashboardHandler.MountRoutes)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
