/**
 * @description
 * This file contains the HTTP handlers for the transfer-approval endpoints.
 * Handlers parse incoming requests, call the application service, and map
 * service errors onto the HTTP status-code taxonomy: 400 validation, 401
 * authentication, 403 authorization, 404 not found, 409 conflict, 429 rate
 * limited, 500 internal.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nisr16/stablecoin-banking-api/internal/app"
	"github.com/nisr16/stablecoin-banking-api/internal/domain"
	"github.com/nisr16/stablecoin-banking-api/internal/store"
)

// Handlers holds the application service that handlers delegate to.
type Handlers struct {
	service *app.Service
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service *app.Service) *Handlers {
	return &Handlers{service: service}
}

// errorResponse is the machine-readable error envelope: a stable kind plus a
// human message. Authorization errors carry required vs actual role levels in
// details to aid remediation.
type errorResponse struct {
	Kind    string      `json:"kind"`
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// InitiateTransferHandler handles POST /api/transfers/initiate.
func (h *Handlers) InitiateTransferHandler(w http.ResponseWriter, r *http.Request) {
	bank, ok := GetBank(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Could not get bank from context")
		return
	}

	var req domain.InitiateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	result, err := h.service.InitiateTransfer(r.Context(), bank.ID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=initiate_transfer outcome=failed bank_id=%s err=%v", bank.ID, err)
		var rateErr *app.RateLimitedError
		switch {
		case errors.Is(err, app.ErrInvalidTransferAmount):
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, app.ErrUnauthorizedInitiator):
			writeError(w, http.StatusForbidden, "authorization_error", err.Error())
		case errors.Is(err, store.ErrWalletNotFound):
			writeError(w, http.StatusBadRequest, "validation_error", "Source wallet not found")
		case errors.As(err, &rateErr):
			w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
			writeError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ApproveTransferHandler handles POST /api/transfers/{id}/approve.
func (h *Handlers) ApproveTransferHandler(w http.ResponseWriter, r *http.Request) {
	bank, ok := GetBank(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Could not get bank from context")
		return
	}

	transferID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid transfer id")
		return
	}

	var req domain.ApproveTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	progress, err := h.service.ApproveTransfer(r.Context(), bank.ID, transferID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=approve_transfer outcome=failed bank_id=%s transfer_id=%s err=%v", bank.ID, transferID, err)
		var levelErr *app.InsufficientRoleLevelError
		switch {
		case errors.Is(err, app.ErrInvalidApprover):
			writeError(w, http.StatusForbidden, "authorization_error", err.Error())
		case errors.Is(err, store.ErrTransferNotFound):
			writeError(w, http.StatusNotFound, "not_found_error", "Transfer not found")
		case errors.Is(err, store.ErrTransferCompleted):
			writeError(w, http.StatusConflict, "conflict_error", "Transfer is already completed")
		case errors.Is(err, store.ErrNoApprovalNeeded):
			writeError(w, http.StatusBadRequest, "conflict_error", "Transfer was auto-approved; no approvals accepted")
		case errors.Is(err, store.ErrTransferNotApprovable):
			writeError(w, http.StatusConflict, "conflict_error", "Transfer is no longer approvable")
		case errors.Is(err, store.ErrDuplicateApproval):
			writeError(w, http.StatusConflict, "conflict_error", "Approver has already approved this transfer")
		case errors.As(err, &levelErr):
			writeJSON(w, http.StatusForbidden, errorResponse{
				Kind:  "authorization_error",
				Error: levelErr.Error(),
				Details: map[string]int{
					"required_role_level": levelErr.RequiredLevel,
					"actual_role_level":   levelErr.ActualLevel,
				},
			})
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, progress)
}

// TransferStatusHandler handles GET /api/transfers/{id}/status.
func (h *Handlers) TransferStatusHandler(w http.ResponseWriter, r *http.Request) {
	bank, ok := GetBank(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Could not get bank from context")
		return
	}

	transferID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid transfer id")
		return
	}

	status, err := h.service.GetTransferStatus(r.Context(), bank.ID, transferID)
	if err != nil {
		if errors.Is(err, store.ErrTransferNotFound) {
			writeError(w, http.StatusNotFound, "not_found_error", "Transfer not found")
			return
		}
		log.Printf("level=error component=api endpoint=transfer_status bank_id=%s transfer_id=%s err=%v", bank.ID, transferID, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// ListPendingTransfersHandler handles GET /api/transfers/pending.
func (h *Handlers) ListPendingTransfersHandler(w http.ResponseWriter, r *http.Request) {
	bank, ok := GetBank(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Could not get bank from context")
		return
	}

	transfers, err := h.service.ListPendingTransfers(r.Context(), bank.ID)
	if err != nil {
		log.Printf("level=error component=api endpoint=pending_transfers bank_id=%s err=%v", bank.ID, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	if transfers == nil {
		transfers = []domain.Transfer{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pending_transfers": transfers,
		"count":             len(transfers),
	})
}

// ListApprovalRulesHandler handles GET /api/transfers/rules.
func (h *Handlers) ListApprovalRulesHandler(w http.ResponseWriter, r *http.Request) {
	bank, ok := GetBank(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Could not get bank from context")
		return
	}

	rules, err := h.service.ListApprovalRules(r.Context(), bank.ID)
	if err != nil {
		log.Printf("level=error component=api endpoint=approval_rules bank_id=%s err=%v", bank.ID, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	if rules == nil {
		rules = []domain.ApprovalRule{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"approval_rules": rules})
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing the JSON error envelope.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Kind: kind, Error: message})
}
