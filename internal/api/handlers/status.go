package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinkeep/coinkeep/internal/api/middleware"
)

// Pinger is the mirror's connectivity probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusHandler reports mirror connectivity. Database trouble is
// otherwise invisible: the mirror degrades silently, so this endpoint is
// the one place it surfaces.
type StatusHandler struct {
	mirror Pinger
	log    zerolog.Logger
}

// NewStatusHandler creates a new status handler. mirror is nil in
// offline mode.
func NewStatusHandler(mirror Pinger, log zerolog.Logger) *StatusHandler {
	return &StatusHandler{mirror: mirror, log: log}
}

// Health handles GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Status handles GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.mirror == nil {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"mode":     "offline",
			"database": false,
		})
		return
	}

	connected := true
	if err := h.mirror.Ping(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Database probe failed")
		connected = false
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"mode":     "online",
		"database": connected,
	})
}
