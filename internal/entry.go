// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/postjournal/internal/api"
	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/auth"
	"github.com/starford/postjournal/internal/sse"
	"github.com/starford/postjournal/internal/store"
	"github.com/starford/postjournal/internal/store/postgres"
	"github.com/starford/postjournal/internal/store/sqlite"
)

type closableStore interface {
	store.Store
	Close() error
}

func openStore(cfg StoreConfig) (closableStore, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return postgres.Open(cfg.DSN)
	case DriverLibSQL:
		return sqlite.Open(sqlite.DriverLibSQL, cfg.DSN)
	default:
		return sqlite.Open(sqlite.DriverSQLite, cfg.DSN)
	}
}

// NewServerHandler builds the HTTP handler of the API server: health checks
// plus the API mounted under /api.
func NewServerHandler(cfg *Config, st store.Store, broker *sse.Broker) http.Handler {
	var verifier *auth.Verifier
	if cfg.Auth.AuthEnabled() {
		verifier = auth.NewVerifier([]byte(cfg.Auth.JWTSecret))
	}
	apiRouter := api.NewRouter(st, api.Options{
		Verifier:     verifier,
		DefaultOwner: cfg.Auth.DefaultOwner,
		CORSOrigins:  cfg.CORS.Origins,
		Events:       broker,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		// Any owner works: a missing profile still proves the store answers.
		if _, err := st.GetProfile(ctx, "health-check"); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)
	return r
}

// Run starts the API server and blocks until a signal arrives or ctx ends.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	broker := sse.NewBroker(cfg.Sync.CalendarThrottle)
	defer broker.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           NewServerHandler(cfg, st, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Streaming clients never finish on their own.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
