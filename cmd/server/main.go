/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the crew payroll server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment), apply flag overrides
  2. Configure zerolog
  3. Initialize SQLite store and seed overtime settings
  4. Start the ledger notification dispatcher
  5. Create the closing service, API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PAYROLL_PORT)
  -db      SQLite database path (overrides PAYROLL_DB)
           Use ":memory:" for in-memory database
  -env     Path of the .env file to read (default .env)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Drain pending ledger notifications
  4. Close database connection

EXAMPLES:
  ./server -db="./data/payroll.db"
  PAYROLL_LOG_FORMAT=human ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - closing/service.go: Payroll operations
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/warp/crew-payroll/api"
	"github.com/warp/crew-payroll/closing"
	"github.com/warp/crew-payroll/config"
	"github.com/warp/crew-payroll/payroll"
	"github.com/warp/crew-payroll/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	envFile := flag.String("env", ".env", "Path of the .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.App.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Logging: human readable on request, JSON otherwise
	output := io.Writer(os.Stdout)
	if cfg.Log.Format == "human" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	zerolog.SetGlobalLevel(cfg.Log.Level)
	log.Logger = log.Output(output).With().Timestamp().Logger()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.Database.Path).Msg("failed to initialize database")
	}
	defer store.Close()

	if err := store.SeedSettings(context.Background(), cfg.Payroll.Overtime); err != nil {
		log.Fatal().Err(err).Msg("failed to seed overtime settings")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := closing.NewMetrics(registry)

	// Ledger notifications
	dispatcher := closing.NewDispatcher(cfg.App.EventBuffer, log.Logger)
	dispatcher.Subscribe(func(ev closing.LedgerChanged) {
		log.Debug().
			Str("action", string(ev.Action)).
			Str("entry_id", string(ev.EntryID)).
			Str("event_id", string(ev.EventID)).
			Str("worker_id", string(ev.WorkerID)).
			Str("amount", ev.Amount.StringFixed(2)).
			Msg("ledger changed")
	})
	dispatcher.Start()

	formatter := payroll.NewFormatter(cfg.Payroll.CurrencyLocale)
	svc := closing.NewService(store, store, closing.Options{
		Formatter:  formatter,
		Logger:     log.Logger.With().Str("component", "closing").Logger(),
		Dispatcher: dispatcher,
		Metrics:    metrics,
	})

	handler := api.NewHandler(svc, store, formatter, log.Logger)
	router := api.NewRouter(handler, registry, cfg.App.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", cfg.App.Port).
			Str("db", cfg.Database.Path).
			Str("currency", formatter.Currency.String()).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	dispatcher.Stop()

	log.Info().Msg("server stopped")
}
