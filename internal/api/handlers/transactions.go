package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinkeep/coinkeep/internal/api/middleware"
	"github.com/coinkeep/coinkeep/internal/blob"
	"github.com/coinkeep/coinkeep/internal/cache"
	"github.com/coinkeep/coinkeep/internal/domain"
	"github.com/coinkeep/coinkeep/internal/filter"
	"github.com/coinkeep/coinkeep/internal/repo"
)

// maxUploadBytes bounds multipart attachment uploads.
const maxUploadBytes = 32 << 20

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	repo  *repo.Repository
	blobs *blob.Store
	cache *cache.Cache
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo *repo.Repository, blobs *blob.Store, cache *cache.Cache, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{repo: repo, blobs: blobs, cache: cache, log: log}
}

// List handles GET /api/accounts/{id}/transactions with an optional ?q=
// filter query.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	txns, err := h.repo.Transactions(accountID)
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to list transactions")
		return
	}

	if q := r.URL.Query().Get("q"); q != "" {
		txns = filter.Apply(filter.Parse(q), txns)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txns,
		"count":        len(txns),
	})
}

// Get handles GET /api/accounts/{id}/transactions/{tid}
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	txn, err := h.repo.Transaction(r.PathValue("id"), r.PathValue("tid"))
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, txn)
}

// Add handles POST /api/accounts/{id}/transactions. The body is either
// JSON or multipart form data carrying an optional attachment under the
// "file" field.
func (h *TransactionsHandler) Add(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	var (
		name, description, tag string
		amount                 float64
		date                   time.Time
		fileRef                *domain.FileRef
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart body")
			return
		}
		name = r.FormValue("name")
		description = r.FormValue("description")
		tag = r.FormValue("tag")

		var err error
		amount, err = strconv.ParseFloat(r.FormValue("amount"), 64)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid amount")
			return
		}
		date, err = parseDate(r.FormValue("date"))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid date")
			return
		}

		if f, header, err := r.FormFile("file"); err == nil {
			defer f.Close()
			ref, err := h.blobs.Put(header.Filename, f)
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to store attachment")
				middleware.WriteError(w, http.StatusInternalServerError, "Failed to store attachment")
				return
			}
			fileRef = &ref
		}
	} else {
		var req struct {
			Name        string  `json:"name"`
			Description string  `json:"description"`
			Amount      float64 `json:"amount"`
			Date        string  `json:"date"`
			Tag         string  `json:"tag"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		name = req.Name
		description = req.Description
		amount = req.Amount
		tag = req.Tag

		var err error
		date, err = parseDate(req.Date)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid date")
			return
		}
	}

	if name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	txn, err := h.repo.AddTransaction(accountID, name, description, amount, date, tag, fileRef)
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to add transaction")
		return
	}
	h.cache.InvalidateAccount(r.Context(), accountID)
	middleware.WriteJSON(w, http.StatusCreated, txn)
}

// Patch handles PATCH /api/accounts/{id}/transactions/{tid}. Unknown
// fields are rejected rather than silently dropped.
func (h *TransactionsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var patch domain.TransactionPatch
	if err := dec.Decode(&patch); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid patch body")
		return
	}

	txn, err := h.repo.PatchTransaction(accountID, r.PathValue("tid"), patch)
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to patch transaction")
		return
	}
	h.cache.InvalidateAccount(r.Context(), accountID)
	middleware.WriteJSON(w, http.StatusOK, txn)
}

// Delete handles DELETE /api/accounts/{id}/transactions/{tid}
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	txID := r.PathValue("tid")

	if err := h.repo.DeleteTransaction(accountID, txID); err != nil {
		writeRepoError(w, h.log, err, "Failed to delete transaction")
		return
	}
	h.cache.InvalidateAccount(r.Context(), accountID)
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": txID, "status": "deleted"})
}

// DownloadFile handles GET /api/accounts/{id}/transactions/{tid}/file
func (h *TransactionsHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	txn, err := h.repo.Transaction(r.PathValue("id"), r.PathValue("tid"))
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to get transaction")
		return
	}
	if txn.File == nil {
		middleware.WriteError(w, http.StatusNotFound, "Transaction has no attachment")
		return
	}

	f, err := h.blobs.Open(*txn.File)
	if err != nil {
		h.log.Error().Err(err).Str("file_id", txn.File.ID).Msg("Failed to open attachment")
		middleware.WriteError(w, http.StatusNotFound, "Attachment blob missing")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+txn.File.Name+`"`)
	io.Copy(w, f)
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	if ts, err := time.Parse("2006-01-02", value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
