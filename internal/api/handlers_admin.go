/**
 * @description
 * This file contains the HTTP handlers for bank onboarding and tenant
 * administration: bank registration, user and role management, and wallet
 * management. Registration is the only unauthenticated write endpoint; its
 * response carries the plaintext API key exactly once.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nisr16/stablecoin-banking-api/internal/app"
	"github.com/nisr16/stablecoin-banking-api/internal/domain"
	"github.com/nisr16/stablecoin-banking-api/internal/store"
)

// RegisterBankHandler handles POST /api/banks/register.
func (h *Handlers) RegisterBankHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterBankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	resp, err := h.service.RegisterBank(r.Context(), req)
	if err != nil {
		if errors.Is(err, app.ErrBankNameRequired) {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=register_bank err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// CreateUserHandler handles POST /api/users/create.
func (h *Handlers) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	bank, ok := GetBank(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Could not get bank from context")
		return
	}

	var req domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	user, err := h.service.CreateUser(r.Context(), bank.ID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_user outcome=failed bank_id=%s err=%v", bank.ID, err)
		switch {
		case errors.Is(err, app.ErrUsernameRequired):
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, store.ErrRoleNotFound):
			writeError(w, http.StatusBadRequest, "validation_error", "Role does not exist for this bank")
		case errors.Is(err, store.ErrDuplicateUsername):
			writeError(w, http.StatusConflict, "conflict_error", "Username already exists for this bank")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// ListUsersHandler handles GET /api/users.
func (h *Handlers) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	bank, ok := GetBank(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Could not get bank from context")
		return
	}

	users, err := h.service.ListUsers(r.Context(), bank.ID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_users bank_id=%s err=%v", bank.ID, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	if users == nil {
		users = []domain.User{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// ListRolesHandler handles GET /api/users/roles.
func (h *Handlers) ListRolesHandler(w http.ResponseWriter, r *http.Request) {
	bank, ok := GetBank(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Could not get bank from context")
		return
	}

	roles, err := h.service.ListRoles(r.Context(), bank.ID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_roles bank_id=%s err=%v", bank.ID, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	if roles == nil {
		roles = []domain.Role{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"roles": roles})
}

// CreateWalletHandler handles POST /api/wallets/create.
func (h *Handlers) CreateWalletHandler(w http.ResponseWriter, r *http.Request) {
	bank, ok := GetBank(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Could not get bank from context")
		return
	}

	var req domain.CreateWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	wallet, err := h.service.CreateWallet(r.Context(), bank.ID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_wallet outcome=failed bank_id=%s err=%v", bank.ID, err)
		if errors.Is(err, app.ErrWalletNameRequired) {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, wallet)
}

// ListWalletsHandler handles GET /api/wallets.
func (h *Handlers) ListWalletsHandler(w http.ResponseWriter, r *http.Request) {
	bank, ok := GetBank(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Could not get bank from context")
		return
	}

	wallets, err := h.service.ListWallets(r.Context(), bank.ID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_wallets bank_id=%s err=%v", bank.ID, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	if wallets == nil {
		wallets = []domain.Wallet{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"wallets": wallets})
}

// WalletBalanceHandler handles GET /api/wallets/{id}/balance.
func (h *Handlers) WalletBalanceHandler(w http.ResponseWriter, r *http.Request) {
	bank, ok := GetBank(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Could not get bank from context")
		return
	}

	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid wallet id")
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), bank.ID, walletID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			writeError(w, http.StatusNotFound, "not_found_error", "Wallet not found")
			return
		}
		log.Printf("level=error component=api endpoint=wallet_balance bank_id=%s wallet_id=%s err=%v", bank.ID, walletID, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"wallet_id": wallet.ID,
		"name":      wallet.Name,
		"currency":  wallet.Currency,
		"balance":   wallet.Balance,
	})
}
