/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zerolog request logger carrying the request ID
  3. Access log: One line per request with status and latency
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/events/*     Event payroll views and payment registration
  /api/payments/*   Payment cancellation
  /api/workers/*    Monthly summaries
  /api/settings/*   Team overtime settings
  /api/personnel, /api/allocations, /api/worklogs, /api/absences
                    Data entry
  /api/scenarios/*  Demo data
  /healthz          Liveness + database ping
  /metrics          Prometheus

SECURITY NOTE:
  No authentication middleware. Put the service behind an authenticating
  proxy before exposing it.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// NewRouter creates a new router with all routes configured. Metrics are
// served from gatherer; nil means the default registry.
func NewRouter(h *Handler, gatherer prometheus.Gatherer, allowedOrigins []string) *chi.Mux {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(h.Log))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("latency", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/events/{eventID}", func(r chi.Router) {
			r.Get("/payroll", h.GetEventPayroll)
			r.Get("/workers/{workerID}/payroll", h.GetWorkerEventPayroll)
			r.Post("/payments", h.RegisterPayment)
		})

		r.Delete("/payments/{id}", h.CancelPayment)

		r.Get("/workers/{workerID}/payroll", h.GetMonthlyPayroll)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/overtime", h.GetOvertimeSettings)
			r.Put("/overtime", h.UpdateOvertimeSettings)
		})

		r.Route("/personnel", func(r chi.Router) {
			r.Get("/", h.ListPersonnel)
			r.Post("/", h.CreatePersonnel)
		})
		r.Post("/allocations", h.CreateAllocation)
		r.Delete("/allocations/{id}", h.DeleteAllocation)
		r.Post("/worklogs", h.CreateWorkLog)
		r.Post("/absences", h.CreateAbsence)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// requestIDLogger adds chi's request ID to the request-scoped logger.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			log := hlog.FromRequest(r)
			log.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}
