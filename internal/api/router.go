// Package api assembles the HTTP surface: routes plus the middleware
// chain.
package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/coinkeep/coinkeep/internal/api/handlers"
	"github.com/coinkeep/coinkeep/internal/api/middleware"
)

// Handlers groups the endpoint handlers the router mounts.
type Handlers struct {
	Accounts     *handlers.AccountsHandler
	Transactions *handlers.TransactionsHandler
	Tags         *handlers.TagsHandler
	Charts       *handlers.ChartsHandler
	Settings     *handlers.SettingsHandler
	Archive      *handlers.ArchiveHandler
	Status       *handlers.StatusHandler
}

// NewRouter wires every route and wraps the mux in the middleware chain.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Status.Health)
	mux.HandleFunc("GET /api/status", h.Status.Status)

	mux.HandleFunc("GET /api/accounts", h.Accounts.List)
	mux.HandleFunc("POST /api/accounts", h.Accounts.Create)
	mux.HandleFunc("GET /api/accounts/{id}", h.Accounts.Get)
	mux.HandleFunc("PUT /api/accounts/{id}/name", h.Accounts.Rename)
	mux.HandleFunc("PUT /api/accounts/{id}/monthly", h.Accounts.SetMonthly)
	mux.HandleFunc("DELETE /api/accounts/{id}", h.Accounts.Delete)

	mux.HandleFunc("GET /api/accounts/{id}/transactions", h.Transactions.List)
	mux.HandleFunc("POST /api/accounts/{id}/transactions", h.Transactions.Add)
	mux.HandleFunc("GET /api/accounts/{id}/transactions/{tid}", h.Transactions.Get)
	mux.HandleFunc("PATCH /api/accounts/{id}/transactions/{tid}", h.Transactions.Patch)
	mux.HandleFunc("DELETE /api/accounts/{id}/transactions/{tid}", h.Transactions.Delete)
	mux.HandleFunc("GET /api/accounts/{id}/transactions/{tid}/file", h.Transactions.DownloadFile)

	mux.HandleFunc("GET /api/accounts/{id}/tags", h.Tags.List)
	mux.HandleFunc("POST /api/accounts/{id}/tags", h.Tags.Create)
	mux.HandleFunc("PUT /api/accounts/{id}/tags/{tagID}", h.Tags.Update)
	mux.HandleFunc("DELETE /api/accounts/{id}/tags/{tagID}", h.Tags.Delete)

	mux.HandleFunc("GET /api/accounts/{id}/charts", h.Charts.List)
	mux.HandleFunc("POST /api/accounts/{id}/charts", h.Charts.Create)
	mux.HandleFunc("PUT /api/accounts/{id}/charts/{chartID}", h.Charts.Update)
	mux.HandleFunc("DELETE /api/accounts/{id}/charts/{chartID}", h.Charts.Delete)
	mux.HandleFunc("POST /api/accounts/{id}/charts/{chartID}/data", h.Charts.Data)

	mux.HandleFunc("GET /api/accounts/{id}/settings", h.Settings.List)
	mux.HandleFunc("PUT /api/accounts/{id}/settings", h.Settings.Set)

	mux.HandleFunc("GET /api/accounts/{id}/export", h.Archive.Export)
	mux.HandleFunc("POST /api/import", h.Archive.Import)

	return middleware.Recovery(log)(
		middleware.RequestID(log)(
			middleware.Logger(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)
}
