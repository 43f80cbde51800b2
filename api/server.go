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
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/products/*   Catalog management
  /api/stock/*      Ledger movements and derived balances
  /api/sales/*      Sale recording and analytics
  /api/cash/*       Cash movements and financial summary
  /api/reports/*    Report exports

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
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
		// Catalog routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}", h.GetProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})

		// Ledger routes
		r.Route("/stock", func(r chi.Router) {
			r.Get("/balances", h.GetStockBalances)
			r.Get("/movements", h.ListStockMovements)
			r.Post("/movements", h.AddStockMovement)
		})

		// Sales and analytics routes
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListSales)
			r.Post("/", h.CreateSale)
			r.Get("/by-product", h.SalesByProduct)
			r.Get("/trend", h.SalesTrend)
			r.Get("/totals", h.SalesTotals)
		})

		// Cash routes
		r.Route("/cash", func(r chi.Router) {
			r.Get("/movements", h.ListCashMovements)
			r.Post("/movements", h.AddCashMovement)
			r.Get("/summary", h.CashSummary)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Post("/all", h.ExportAllReports)
			r.Post("/{kind}", h.ExportReport)
		})
	})

	return r
}
