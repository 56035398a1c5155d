// Package mirror projects the in-memory account state into an external
// Postgres database. The projection is one-way and best-effort: the JSON
// store has already persisted by the time a sync runs, so mirror errors
// are logged and swallowed, never surfaced to the caller. The read path
// is used once, at startup in online mode, to hydrate memory.
package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

const probeTimeout = 2 * time.Second

// Mirror wraps the database handle. Sync passes are serialized by a
// mutex so two overlapping mutations cannot interleave their upserts;
// lastSeq tracks the newest snapshot taken so a slower goroutine
// carrying an older one is dropped instead of applied.
type Mirror struct {
	mu      sync.Mutex
	db      *sql.DB
	lastSeq uint64
	log     zerolog.Logger
}

// Connect opens the database, waits for it to become reachable with
// exponential backoff, and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string, log zerolog.Logger) (*Mirror, error) {
	cfg, err := pgx.ParseConfig(normalizeURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	db := stdlib.OpenDB(*cfg)

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8), ctx)
	if err := backoff.RetryNotify(ping, policy, func(err error, next time.Duration) {
		log.Warn().Err(err).Dur("retry_in", next).Msg("Database not ready")
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	m := &Mirror{db: db, log: log}
	if err := m.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	log.Info().Msg("Database connection established")
	return m, nil
}

// normalizeURL accepts postgresql:// URLs and defaults sslmode=disable
// when the URL does not set one.
func normalizeURL(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgresql://") {
		databaseURL = "postgres://" + strings.TrimPrefix(databaseURL, "postgresql://")
	}
	if !strings.Contains(databaseURL, "sslmode=") {
		separator := "?"
		if strings.Contains(databaseURL, "?") {
			separator = "&"
		}
		databaseURL += separator + "sslmode=disable"
	}
	return databaseURL
}

// Ping is the lazy connectivity probe run before every sync and by the
// status endpoint.
func (m *Mirror) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return m.db.PingContext(pingCtx)
}

// Close releases the database handle.
func (m *Mirror) Close() error {
	return m.db.Close()
}
