package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/coinkeep/coinkeep/internal/api"
	"github.com/coinkeep/coinkeep/internal/api/handlers"
	"github.com/coinkeep/coinkeep/internal/archive"
	"github.com/coinkeep/coinkeep/internal/blob"
	"github.com/coinkeep/coinkeep/internal/cache"
	"github.com/coinkeep/coinkeep/internal/domain"
	"github.com/coinkeep/coinkeep/internal/logger"
	"github.com/coinkeep/coinkeep/internal/mirror"
	"github.com/coinkeep/coinkeep/internal/repo"
	"github.com/coinkeep/coinkeep/internal/store"
)

var cli struct {
	Serve serveCmd `cmd:"" default:"1" help:"Run the coinkeep server."`
}

type serveCmd struct {
	Port          string        `default:"8080" env:"PORT" help:"HTTP server port."`
	DataDir       string        `default:"./data" env:"DATA_DIR" help:"Directory holding accounts.json and the files/ blob store."`
	DatabaseURL   string        `env:"DATABASE_URL" help:"Postgres URL for the mirror. Empty runs offline."`
	RedisURL      string        `env:"REDIS_URL" help:"Redis URL for the response cache. Empty disables caching."`
	SweepInterval time.Duration `default:"1h" help:"Interval between orphaned-blob sweeps."`
}

func main() {
	ctx := kong.Parse(&cli)
	ctx.FatalIfErrorf(ctx.Run())
}

func (c *serveCmd) Run() error {
	log := logger.New()
	ctx := context.Background()

	jsonStore := store.NewJSONFile(filepath.Join(c.DataDir, "accounts.json"))
	blobs, err := blob.NewStore(filepath.Join(c.DataDir, "files"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open blob store")
	}

	var m *mirror.Mirror
	if c.DatabaseURL != "" {
		m, err = mirror.Connect(ctx, c.DatabaseURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer m.Close()
	}

	// Exactly one read source initializes memory: the mirror when
	// online, the JSON file otherwise. The loaded state is written
	// straight back so the file always holds the canonical shape.
	var accounts []domain.Account
	if m != nil {
		accounts, err = m.Hydrate(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to hydrate from database")
		}
		log.Info().Int("accounts", len(accounts)).Msg("Hydrated from database")
	} else {
		accounts, err = jsonStore.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load account store")
		}
		log.Info().Int("accounts", len(accounts)).Str("path", jsonStore.Path()).Msg("Loaded account store")
	}
	if err := jsonStore.Save(accounts); err != nil {
		log.Fatal().Err(err).Msg("Failed to snapshot account store")
	}

	var repoMirror repo.Mirror
	if m != nil {
		repoMirror = m
	}
	accountRepo := repo.New(accounts, jsonStore, repoMirror, log)

	respCache := cache.Connect(ctx, c.RedisURL, log)
	defer respCache.Close()

	archiveSvc := archive.NewService(accountRepo, blobs)

	// Background sweep of orphaned attachment blobs.
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	sweeper := blob.NewSweeper(blobs, accountRepo.ReferencedFileIDs, c.SweepInterval, log)
	go sweeper.Run(sweepCtx)

	var pinger handlers.Pinger
	if m != nil {
		pinger = m
	}
	handler := api.NewRouter(api.Handlers{
		Accounts:     handlers.NewAccountsHandler(accountRepo, respCache, log),
		Transactions: handlers.NewTransactionsHandler(accountRepo, blobs, respCache, log),
		Tags:         handlers.NewTagsHandler(accountRepo, respCache, log),
		Charts:       handlers.NewChartsHandler(accountRepo, respCache, log),
		Settings:     handlers.NewSettingsHandler(accountRepo, respCache, log),
		Archive:      handlers.NewArchiveHandler(archiveSvc, respCache, log),
		Status:       handlers.NewStatusHandler(pinger, log),
	}, log)

	server := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", c.Port).Msg("Starting coinkeep server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancelSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
	return nil
}
