package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/coinkeep/coinkeep/internal/api/middleware"
	"github.com/coinkeep/coinkeep/internal/archive"
	"github.com/coinkeep/coinkeep/internal/cache"
)

// maxArchiveBytes bounds uploaded archives.
const maxArchiveBytes = 256 << 20

// ArchiveHandler handles account export and import.
type ArchiveHandler struct {
	svc   *archive.Service
	cache *cache.Cache
	log   zerolog.Logger
}

// NewArchiveHandler creates a new archive handler.
func NewArchiveHandler(svc *archive.Service, cache *cache.Cache, log zerolog.Logger) *ArchiveHandler {
	return &ArchiveHandler{svc: svc, cache: cache, log: log}
}

// Export handles GET /api/accounts/{id}/export and returns the zip
// bytes.
func (h *ArchiveHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	data, err := h.svc.Export(id)
	if err != nil {
		writeRepoError(w, h.log, err, "Failed to export account")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="account-`+id+`.zip"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Import handles POST /api/import?force=true with the archive bytes as
// the request body.
func (h *ArchiveHandler) Import(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	data, err := io.ReadAll(io.LimitReader(r.Body, maxArchiveBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read archive body")
		return
	}

	account, err := h.svc.Import(data, force)
	switch {
	case errors.Is(err, archive.ErrMalformedArchive):
		middleware.WriteError(w, http.StatusBadRequest, "Malformed archive")
		return
	case errors.Is(err, archive.ErrIDConflict):
		middleware.WriteError(w, http.StatusConflict, "Account id already exists")
		return
	case errors.Is(err, archive.ErrMissingBlob):
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Archive is missing a referenced file")
		return
	case err != nil:
		h.log.Error().Err(err).Msg("Failed to import account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to import account")
		return
	}

	h.cache.InvalidateAccount(r.Context(), account.ID)
	h.log.Info().Str("account_id", account.ID).Bool("force", force).Msg("Account imported")
	middleware.WriteJSON(w, http.StatusOK, account)
}
