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

// TagsHandler handles tag endpoints.
type TagsHandler struct {
	repo  *repo.Repository
	cache *cache.Cache
	log   zerolog.Logger
}

// NewTagsHandler creates a new tags handler.
func NewTagsHandler(repo *repo.Repository, cache *cache.Cache, log zerolog.Logger) *TagsHandler {
	return &TagsHandler{repo: repo, cache: cache, log: log}
}

// List handles GET /api/accounts/{id}/tags
func (h *TagsHandler) List(w http.ResponseWriter, r *http.Request) {
	account, err := h.repo.Account(r.PathValue("id"))
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to list tags")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tags":  account.Tags,
		"count": len(account.Tags),
	})
}

// Create handles POST /api/accounts/{id}/tags
func (h *TagsHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	tag, err := h.repo.CreateTag(accountID, req.Name, req.Color)
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to create tag")
		return
	}
	h.cache.InvalidateAccount(r.Context(), accountID)
	middleware.WriteJSON(w, http.StatusCreated, tag)
}

// Update handles PUT /api/accounts/{id}/tags/{tagID}
func (h *TagsHandler) Update(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tag := domain.Tag{ID: r.PathValue("tagID"), Name: req.Name, Color: req.Color}
	if err := h.repo.UpdateTag(accountID, tag); err != nil {
		writeRepoError(w, h.log, err, "Failed to update tag")
		return
	}
	h.cache.InvalidateAccount(r.Context(), accountID)
	middleware.WriteJSON(w, http.StatusOK, tag)
}

// Delete handles DELETE /api/accounts/{id}/tags/{tagID}. Transactions
// referencing the tag are left alone; their reference dangles.
func (h *TagsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	tagID := r.PathValue("tagID")

	if err := h.repo.DeleteTag(accountID, tagID); err != nil {
		writeRepoError(w, h.log, err, "Failed to delete tag")
		return
	}
	h.cache.InvalidateAccount(r.Context(), accountID)
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": tagID, "status": "deleted"})
}
