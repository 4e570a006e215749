/**
 * @description
 * This file sets up the HTTP router for the ledger-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * standard middleware plus the per-account rate limit on mutation routes.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vaultbank/ledger-service/internal/app"
)

// LedgerRoutes creates and returns the router for the ledger service.
// limiter may be nil, in which case mutation routes are not rate limited.
func LedgerRoutes(h *LedgerHandlers, limiter app.RateLimiter, mutationLimitPerMinute int) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Get("/", h.HomeHandler)

	r.Route("/accounts/{accountNumber}", func(r chi.Router) {
		r.Get("/balance", h.GetBalanceHandler)
		r.Get("/transactions", h.ListTransactionsHandler)

		// Mutation endpoints share one per-account budget.
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(h, limiter, "mutation", mutationLimitPerMinute, time.Minute))
			r.Post("/deposit", h.DepositHandler)
			r.Post("/withdraw", h.WithdrawHandler)
		})
	})

	return r
}
