package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/coinkeep/coinkeep/internal/api/middleware"
	"github.com/coinkeep/coinkeep/internal/cache"
	"github.com/coinkeep/coinkeep/internal/domain"
	"github.com/coinkeep/coinkeep/internal/repo"
)

// SettingsHandler handles per-account settings.
type SettingsHandler struct {
	repo  *repo.Repository
	cache *cache.Cache
	log   zerolog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(repo *repo.Repository, cache *cache.Cache, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{repo: repo, cache: cache, log: log}
}

// List handles GET /api/accounts/{id}/settings
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.repo.Settings(r.PathValue("id"))
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to list settings")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"settings": settings,
		"count":    len(settings),
	})
}

// Set handles PUT /api/accounts/{id}/settings: upsert one setting by
// name.
func (h *SettingsHandler) Set(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	var setting domain.Setting
	if err := json.NewDecoder(r.Body).Decode(&setting); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if setting.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	if err := h.repo.SetSetting(accountID, setting); err != nil {
		writeRepoError(w, h.log, err, "Failed to set setting")
		return
	}
	h.cache.InvalidateAccount(r.Context(), accountID)
	middleware.WriteJSON(w, http.StatusOK, setting)
}
