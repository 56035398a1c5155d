// Package handlers implements the REST surface over the account
// repository. Handlers translate repository sentinel errors into HTTP
// statuses; they do not hold state of their own.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/coinkeep/coinkeep/internal/api/middleware"
	"github.com/coinkeep/coinkeep/internal/cache"
	"github.com/coinkeep/coinkeep/internal/repo"
)

// writeRepoError maps repository errors onto HTTP statuses.
func writeRepoError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	if errors.Is(err, repo.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	log.Error().Err(err).Msg(msg)
	middleware.WriteError(w, http.StatusInternalServerError, msg)
}

// AccountsHandler handles account-level endpoints.
type AccountsHandler struct {
	repo  *repo.Repository
	cache *cache.Cache
	log   zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(repo *repo.Repository, cache *cache.Cache, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{repo: repo, cache: cache, log: log}
}

// List handles GET /api/accounts
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts := h.repo.Accounts()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// Create handles POST /api/accounts
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	account, err := h.repo.CreateAccount(req.Name)
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to create account")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, account)
}

// Get handles GET /api/accounts/{id}
func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	if payload, ok := h.cache.GetAccount(ctx, id); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
		return
	}

	account, err := h.repo.Account(id)
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to get account")
		return
	}

	payload, err := json.Marshal(account)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to encode account")
		return
	}
	h.cache.SetAccount(ctx, id, payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// Rename handles PUT /api/accounts/{id}/name
func (h *AccountsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	if err := h.repo.RenameAccount(id, req.Name); err != nil {
		writeRepoError(w, h.log, err, "Failed to rename account")
		return
	}
	h.cache.InvalidateAccount(r.Context(), id)
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "name": req.Name})
}

// SetMonthly handles PUT /api/accounts/{id}/monthly
func (h *AccountsHandler) SetMonthly(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Monthly float64 `json:"monthly"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.repo.SetMonthlyBudget(id, req.Monthly); err != nil {
		writeRepoError(w, h.log, err, "Failed to set monthly budget")
		return
	}
	h.cache.InvalidateAccount(r.Context(), id)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"id": id, "monthly": req.Monthly})
}

// Delete handles DELETE /api/accounts/{id}
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.repo.DeleteAccount(id); err != nil {
		writeRepoError(w, h.log, err, "Failed to delete account")
		return
	}
	h.cache.InvalidateAccount(r.Context(), id)
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}
