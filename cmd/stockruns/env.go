package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/trogers1052/stock-run-tracker/internal/cache"
	"github.com/trogers1052/stock-run-tracker/internal/config"
	"github.com/trogers1052/stock-run-tracker/internal/database"
	"github.com/trogers1052/stock-run-tracker/internal/loader"
	"github.com/trogers1052/stock-run-tracker/internal/logger"
	"github.com/trogers1052/stock-run-tracker/internal/metrics"
	"github.com/trogers1052/stock-run-tracker/internal/waitdb"
)

// env carries the configuration and logger shared by every command
type env struct {
	cfg *config.Config
	log zerolog.Logger
}

func newEnv() *env {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)
	return &env{cfg: cfg, log: log}
}

// connect opens the pool and fails fast when the server is unreachable
func (e *env) connect() (*database.DB, error) {
	return database.New(e.cfg.Database.ConnectionString())
}

// tokenCache connects to Redis. It returns nil when no address is configured.
func (e *env) tokenCache(ctx context.Context) (*cache.TokenCache, error) {
	if e.cfg.Redis.Addr == "" {
		return nil, nil
	}
	return cache.New(ctx, cache.Options{
		Addr:     e.cfg.Redis.Addr,
		Password: e.cfg.Redis.Password,
		DB:       e.cfg.Redis.DB,
		TTL:      e.cfg.Redis.TTL,
	})
}

// waitAndMigrate blocks until the server is up, then applies pending migrations
func (e *env) waitAndMigrate(ctx context.Context) (*database.DB, error) {
	db, err := database.Open(e.cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := waitdb.Wait(ctx, db, waitdb.Options{Logger: e.log}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed waiting for database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	e.log.Info().Msg("migrations applied")
	return db, nil
}

func (e *env) newLoader(db *database.DB, limit int) (*loader.Loader, error) {
	if err := e.cfg.Loader.Validate(); err != nil {
		return nil, err
	}
	return loader.New(db, loader.Options{
		DataDir:  e.cfg.Loader.DataDir(),
		Email:    e.cfg.Loader.Email,
		Password: e.cfg.Loader.Password,
		Limit:    limit,
	}, e.log), nil
}

// populate runs both loaders in dependency order. m may be nil.
func (e *env) populate(ctx context.Context, db *database.DB, limit int, m *metrics.Metrics) error {
	l, err := e.newLoader(db, limit)
	if err != nil {
		return err
	}

	stocks, err := l.LoadStocks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stocks: %w", err)
	}
	bases, err := l.LoadStockBases(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stock bases: %w", err)
	}

	if m != nil {
		m.RecordImport("stock", stocks.Imported, stocks.Existing, stocks.Skipped, stocks.Dropped)
		m.RecordImport("stock_base", bases.Imported, bases.Existing, bases.Skipped, bases.Dropped)
	}
	return nil
}
