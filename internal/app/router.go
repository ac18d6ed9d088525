package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gescom/gescom/internal/access"
	"github.com/gescom/gescom/internal/catalog"
	"github.com/gescom/gescom/internal/commission"
	"github.com/gescom/gescom/internal/observability"
	"github.com/gescom/gescom/internal/personnel"
	"github.com/gescom/gescom/internal/sales"
	"github.com/gescom/gescom/internal/stock"
	"github.com/gescom/gescom/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AccessHandler     *access.Handler
	PersonnelHandler  *personnel.Handler
	CatalogHandler    *catalog.Handler
	StockHandler      *stock.Handler
	SalesHandler      *sales.Handler
	CommissionHandler *commission.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
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

	if params.AccessHandler != nil {
		params.AccessHandler.MountRoutes(r)
	}
	if params.PersonnelHandler != nil {
		params.PersonnelHandler.MountRoutes(r)
	}
	if params.CatalogHandler != nil {
		params.CatalogHandler.MountRoutes(r)
	}
	if params.StockHandler != nil {
		params.StockHandler.MountRoutes(r)
	}
	if params.SalesHandler != nil {
		params.SalesHandler.MountRoutes(r)
	}
	if params.CommissionHandler != nil {
		params.CommissionHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
