package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/coinkeep/coinkeep/internal/api/middleware"
	"github.com/coinkeep/coinkeep/internal/cache"
	"github.com/coinkeep/coinkeep/internal/domain"
	"github.com/coinkeep/coinkeep/internal/filter"
	"github.com/coinkeep/coinkeep/internal/repo"
)

// ChartsHandler handles chart endpoints.
type ChartsHandler struct {
	repo  *repo.Repository
	cache *cache.Cache
	log   zerolog.Logger
}

// NewChartsHandler creates a new charts handler.
func NewChartsHandler(repo *repo.Repository, cache *cache.Cache, log zerolog.Logger) *ChartsHandler {
	return &ChartsHandler{repo: repo, cache: cache, log: log}
}

// List handles GET /api/accounts/{id}/charts
func (h *ChartsHandler) List(w http.ResponseWriter, r *http.Request) {
	account, err := h.repo.Account(r.PathValue("id"))
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to list charts")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"charts": account.Charts,
		"count":  len(account.Charts),
	})
}

// Create handles POST /api/accounts/{id}/charts
func (h *ChartsHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	var chart domain.Chart
	if err := json.NewDecoder(r.Body).Decode(&chart); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if chart.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	created, err := h.repo.CreateChart(accountID, chart)
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to create chart")
		return
	}
	h.cache.InvalidateAccount(r.Context(), accountID)
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/accounts/{id}/charts/{chartID}. The chart is
// replaced wholesale, not field-merged.
func (h *ChartsHandler) Update(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	var chart domain.Chart
	if err := json.NewDecoder(r.Body).Decode(&chart); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	chart.ID = r.PathValue("chartID")

	if err := h.repo.UpdateChart(accountID, chart); err != nil {
		writeRepoError(w, h.log, err, "Failed to update chart")
		return
	}
	h.cache.InvalidateAccount(r.Context(), accountID)
	middleware.WriteJSON(w, http.StatusOK, chart)
}

// Delete handles DELETE /api/accounts/{id}/charts/{chartID}
func (h *ChartsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	chartID := r.PathValue("chartID")

	if err := h.repo.DeleteChart(accountID, chartID); err != nil {
		writeRepoError(w, h.log, err, "Failed to delete chart")
		return
	}
	h.cache.InvalidateAccount(r.Context(), accountID)
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": chartID, "status": "deleted"})
}

// Data handles POST /api/accounts/{id}/charts/{chartID}/data: run the
// chart's builder steps over the account's transactions and return the
// evaluated series.
func (h *ChartsHandler) Data(w http.ResponseWriter, r *http.Request) {
	account, err := h.repo.Account(r.PathValue("id"))
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to build chart data")
		return
	}

	chartID := r.PathValue("chartID")
	for _, chart := range account.Charts {
		if chart.ID != chartID {
			continue
		}
		series := filter.BuildSeries(chart.Steps, chart.Metrics, account.Transactions)
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"chart":  chart,
			"series": series,
		})
		return
	}
	middleware.WriteError(w, http.StatusNotFound, "Not found")
}
