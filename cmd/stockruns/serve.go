package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"time"

	"github.com/google/subcommands"
	"github.com/trogers1052/stock-run-tracker/internal/api"
	"github.com/trogers1052/stock-run-tracker/internal/kafka"
	"github.com/trogers1052/stock-run-tracker/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

type serveCmd struct {
	populate bool
	limit    int
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "wait for the database, migrate, and serve the HTTP API" }
func (*serveCmd) Usage() string {
	return `stockruns serve [-populate=false] [-limit <n>]

  Waits for PostgreSQL, applies migrations, imports the CSV exports into
  empty tables, then serves the API until interrupted. The import is
  skipped when USER_EMAIL is unset.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.populate, "populate", true, "Import the CSV exports before serving.")
	f.IntVar(&c.limit, "limit", 0, "Maximum rows per import (0 imports everything).")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e := newEnv()
	log := e.log

	db, err := e.waitAndMigrate(ctx)
	if err != nil {
		log.Error().Err(err).Msg("database setup failed")
		return subcommands.ExitFailure
	}
	defer db.Close()

	m := metrics.New()

	switch {
	case c.populate && e.cfg.Loader.Email == "":
		log.Warn().Msg("USER_EMAIL not set, skipping CSV import")
	case c.populate:
		if err := e.populate(ctx, db, c.limit, m); err != nil {
			log.Error().Err(err).Msg("populate failed")
			return subcommands.ExitFailure
		}
	}

	handler := api.NewHandler(db, log)

	tokens, err := e.tokenCache(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to redis")
		return subcommands.ExitFailure
	}
	if tokens != nil {
		defer tokens.Close()
		handler.WithTokenCache(tokens)
		log.Info().Str("addr", e.cfg.Redis.Addr).Msg("token cache enabled")
	}

	if len(e.cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(e.cfg.Kafka.Brokers, e.cfg.Kafka.Topic)
		defer producer.Close()
		handler.WithEvents(producer)
		log.Info().Strs("brokers", e.cfg.Kafka.Brokers).Str("topic", e.cfg.Kafka.Topic).Msg("event publishing enabled")
	}

	srv := &http.Server{
		Addr: e.cfg.Server.Addr(),
		Handler: api.SetupRoutes(handler, api.RouterOptions{
			Metrics:        m,
			AllowedOrigins: e.cfg.CORS.AllowedOrigins,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			return subcommands.ExitFailure
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		return subcommands.ExitFailure
	}

	log.Info().Msg("server stopped")
	return subcommands.ExitSuccess
}
