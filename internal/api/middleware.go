/**
 * @description
 * This file contains custom middleware for the HTTP router. The API-key
 * middleware resolves the opaque per-bank credential from the X-API-Key header
 * into bank context before any core call runs.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - internal/domain: For the Bank model stored in request context.
 */

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/nisr16/stablecoin-banking-api/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const bankContextKey contextKey = "bank"

// BankAuthenticator resolves an API key to its bank. Implemented by app.Service.
type BankAuthenticator interface {
	AuthenticateAPIKey(ctx context.Context, apiKey string) (*domain.Bank, error)
}

// APIKeyAuthMiddleware validates the X-API-Key header and injects the resolved
// bank into the request context. Requests with a missing or invalid key are
// rejected with 401 before reaching any handler.
func APIKeyAuthMiddleware(auth BankAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if apiKey == "" {
				writeError(w, http.StatusUnauthorized, "authentication_error", "X-API-Key header required")
				return
			}

			bank, err := auth.AuthenticateAPIKey(r.Context(), apiKey)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication_error", "Invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), bankContextKey, bank)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetBank retrieves the authenticated bank from the request context.
// Handlers behind the auth middleware should use this to scope every call.
func GetBank(ctx context.Context) (*domain.Bank, bool) {
	bank, ok := ctx.Value(bankContextKey).(*domain.Bank)
	return bank, ok
}
