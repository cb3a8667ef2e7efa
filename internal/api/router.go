/**
 * @description
 * This file sets up the HTTP router for the banking API. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * middleware for CORS, panic recovery, timeouts, and API-key authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes creates and returns the router for the banking API.
func Routes(h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Bank onboarding is the only endpoint outside API-key auth.
	r.Post("/api/banks/register", h.RegisterBankHandler)

	// Everything else requires a resolved bank context.
	r.Group(func(r chi.Router) {
		r.Use(APIKeyAuthMiddleware(h.service))

		r.Post("/api/users/create", h.CreateUserHandler)
		r.Get("/api/users", h.ListUsersHandler)
		r.Get("/api/users/roles", h.ListRolesHandler)

		r.Post("/api/wallets/create", h.CreateWalletHandler)
		r.Get("/api/wallets", h.ListWalletsHandler)
		r.Get("/api/wallets/{id}/balance", h.WalletBalanceHandler)

		r.Get("/api/transfers/rules", h.ListApprovalRulesHandler)
		r.Post("/api/transfers/initiate", h.InitiateTransferHandler)
		r.Post("/api/transfers/{id}/approve", h.ApproveTransferHandler)
		r.Get("/api/transfers/{id}/status", h.TransferStatusHandler)
		r.Get("/api/transfers/pending", h.ListPendingTransfersHandler)
	})

	return r
}
