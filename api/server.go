/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the tenant portal frontend

ROUTE GROUPS:
  /api/tenants/*        Tenant, lease, and billing reads
  /api/payments/*       Payment confirmation and receipts
  /api/health           Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
  Deployments are expected to sit behind the portal's gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Tenant routes
		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", h.CreateTenant)
			r.Get("/{tenantID}", h.GetTenant)
			r.Put("/{tenantID}/lease", h.UpsertLease)
			r.Get("/{tenantID}/rent-summary", h.GetRentSummary)
			r.Get("/{tenantID}/ledger", h.GetLedger)
			r.Post("/{tenantID}/payment-links", h.CreatePaymentLink)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/confirm", h.ConfirmPayment)
			r.Get("/receipt/{sessionID}", h.GetReceipt)
		})

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
