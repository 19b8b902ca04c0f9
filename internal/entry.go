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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/insighthink/internal/api"
	"github.com/starford/insighthink/internal/auth"
	"github.com/starford/insighthink/internal/blobstore"
	"github.com/starford/insighthink/internal/content"
	"github.com/starford/insighthink/internal/docstore"
	"github.com/starford/insighthink/internal/mcpserver"
	"github.com/starford/insighthink/internal/metrics"
	"github.com/starford/insighthink/internal/sse"
)

// Run starts the HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("blobs_driver", cfg.Blobs.Driver),
		slog.Bool("metrics_enabled", cfg.Metrics.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	b, err := openBackends(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer b.close(logger)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	m.RegisterGaugeFunc("insighthink_sse_clients", "Connected event stream clients.",
		func() float64 { return float64(broker.ClientCount()) })

	services := content.NewServices(b.store, b.blobs, content.WithEvents(broker), content.WithMetrics(m))
	accounts := content.NewService(content.UserKind(), b.store, b.blobs, content.WithMetrics(m))

	sessions, err := auth.NewSessions(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}
	authSvc := auth.NewService(b.store, sessions, auth.Cookie{
		Name:   cfg.Auth.CookieName,
		Secure: cfg.Auth.SecureCookie,
	})

	apiRouter := api.NewRouter(api.Deps{
		Content:  services,
		Accounts: accounts,
		Auth:     authSvc,
		Blobs:    b.blobs,
		Events:   broker,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(b.store, logger))

	if m != nil {
		r.Handle(cfg.Metrics.Path, m.Handler())
	}

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Apply log level changes from the config file.
	if app.configPath != "" {
		g.Go(func() error {
			err := WatchConfig(gCtx, app.configPath, logger, func(next *Config) {
				app.level.Set(next.App.LogLevel)
			})
			if err != nil {
				logger.Warn("config watcher unavailable", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

		logger.Info("Shutting down server...")

		// Event streams never go idle on their own.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
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

// RunMCP serves the content tools to an MCP client over stdin/stdout until
// the client disconnects. Logs always go to stderr in this mode.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(append(opts, WithLogOutput(os.Stderr)))
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, app.config, nil)
	if err != nil {
		return err
	}
	defer b.close(logger)

	services := content.NewServices(b.store, b.blobs)
	logger.Info("Starting MCP server", slog.String("store_driver", app.config.Store.Driver))
	return mcpserver.New(services.Resources()).ServeStdio()
}

func setup(opts []Option) (*application, *slog.Logger, error) {
	app := &application{
		logOutput: os.Stdout,
		level:     new(slog.LevelVar),
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	app.level.Set(app.config.App.LogLevel)

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.level,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

// backends are the storage clients shared by every request.
type backends struct {
	store docstore.Store
	blobs blobstore.Store
}

func openBackends(ctx context.Context, cfg *Config, m *metrics.Metrics) (*backends, error) {
	b := &backends{}
	switch cfg.Store.Driver {
	case StoreMongo:
		mg, err := docstore.OpenMongo(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		b.store = mg
		if cfg.Blobs.Driver == BlobsGridFS {
			b.blobs = blobstore.NewGridFS(mg.Database(), cfg.Blobs.Bucket)
		}
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		sq, err := docstore.OpenSQLite(cfg.Store.SQLite.Path, content.Collections...)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		b.store = sq
	}

	if b.blobs == nil {
		disk, err := blobstore.NewDisk(cfg.Blobs.Disk.Dir)
		if err != nil {
			_ = b.store.Close(ctx)
			return nil, fmt.Errorf("init blobs: %w", err)
		}
		b.blobs = disk
	}

	if m != nil {
		b.store = docstore.Observe(b.store, m.RecordStoreOperation)
	}
	return b, nil
}

func (b *backends) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.store.Close(ctx); err != nil {
		logger.Warn("store close failed", slog.String("error", err.Error()))
	}
}

// readyHandler reports 503 while the document store is unreachable.
func readyHandler(store docstore.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := store.Ping(ctx); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
