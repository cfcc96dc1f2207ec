package handler

import (
	"net/http"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/config"
	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/observability"
	"github.com/imovelgestor/imovel-gestor-go/internal/port"
	"github.com/imovelgestor/imovel-gestor-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps bundles everything the router needs.
type Deps struct {
	MarcoZero      *service.MarcoZeroService
	Reconciliation *service.ReconciliationService
	Analytics      *service.AnalyticsService
	Properties     port.PropertyStore
	Metrics        *observability.Metrics
	Config         *config.Config
	Logger         *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract consumed by the Imóvel Gestor frontend.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(deps.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.MarcoZero, deps.Logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		if deps.Config.AuthRequired {
			r.Use(JWTAuthMiddleware(deps.Config.JWTSecret, deps.Logger))
		}

		// =============================================
		// Marco Zero
		// =============================================
		r.Post("/marco-zero", setMarcoZeroHandler(deps.MarcoZero, deps.Logger))
		r.Get("/marco-zero/active", getActiveMarcoZeroHandler(deps.MarcoZero, deps.Logger))
		r.Get("/marco-zero/history", marcoZeroHistoryHandler(deps.MarcoZero, deps.Logger))

		// =============================================
		// Reconciliation
		// =============================================
		r.Post("/reconciliation", createAdjustmentHandler(deps.Reconciliation, deps.Logger))
		r.Get("/reconciliation", listAdjustmentsHandler(deps.Reconciliation, deps.Logger))
		r.Delete("/reconciliation/{adjustmentId}", deleteAdjustmentHandler(deps.Reconciliation, deps.Logger))

		// =============================================
		// Analytics
		// =============================================
		r.Get("/analytics/transactions-by-periods", transactionsByPeriodsHandler(deps.Analytics, deps.Logger))
		r.Get("/analytics/pivot", pivotHandler(deps.Analytics, deps.Logger))
		r.Get("/analytics/pivot-with-ipca", pivotWithIPCAHandler(deps.Analytics, deps.Logger))
		r.Get("/analytics/single-month-detailed", singleMonthDetailedHandler(deps.Analytics, deps.Logger))
		r.Get("/analytics/cash-flow", cashFlowHandler(deps.Analytics, deps.Logger))

		// =============================================
		// Internal metrics snapshot
		// =============================================
		r.Get("/metrics/corrections", correctionMetricsHandler(deps.Metrics))

		// =============================================
		// Property catalog
		// =============================================
		r.Get("/properties", listPropertiesHandler(deps.Properties, deps.Logger))
		r.Get("/properties/{propertyId}", getPropertyHandler(deps.Properties, deps.Logger))
	})

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(svc *service.MarcoZeroService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "gestor-api", Status: "healthy", LatencyMs: 0, UptimePercent: 99.99, LastChecked: now},
		}

		start := time.Now()
		_, err := svc.GetActive(ctx)
		latency := time.Since(start).Milliseconds()
		status := "healthy"
		if err != nil {
			status = "degraded"
		}
		services = append(services, domain.ServiceHealth{
			Name: "supabase", Status: status, LatencyMs: latency,
			UptimePercent: 99.9, LastChecked: now,
		})

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func correctionMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]float64{
			"correction_cache_hit_rate": metrics.CorrectionHitRate(),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
