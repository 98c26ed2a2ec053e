// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"javsync/internal/adapter"
	"javsync/internal/adapter/javbus"
	"javsync/internal/adapter/javdb"
	"javsync/internal/config"
	"javsync/internal/cookies"
	"javsync/internal/crawler"
	"javsync/internal/fetch"
	"javsync/internal/logging"
	"javsync/internal/metrics"
	"javsync/internal/runner"
	"javsync/internal/store"
	"javsync/internal/task"
)

const shutdownTimeout = 5 * time.Second

// App holds all the shared, long-lived services for the application:
// the logger, the document store, the site adapter registry and the
// cookie jar. It is initialized once at startup and passed to the
// commands that need it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    store.Provider
	registry adapter.Registry
	jar      *cookies.Jar
	metrics  *http.Server
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetStore exposes the configured document store provider.
func (a *App) GetStore() store.Provider {
	return a.store
}

// GetRegistry returns the site adapter registry.
func (a *App) GetRegistry() adapter.Registry {
	return a.registry
}

// GetConfig returns the configuration the App was built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// NewApp creates and initializes a new App from the loaded configuration.
// It is the central point for service initialization and fails fast if
// any critical service cannot be brought up.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Info("initializing application services")
	metrics.Init()

	var provider store.Provider
	switch cfg.Store.Provider {
	case config.StoreMongo:
		logger.Info("connecting to MongoDB",
			zap.String("database", cfg.Mongo.Database))
		provider, err = store.NewMongoProvider(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.MongoConnectTimeout(), logger)
		if err != nil {
			return nil, fmt.Errorf("initialize store: %w", err)
		}
	case config.StoreMemory:
		logger.Info("using in-memory store, records are discarded on exit")
		provider = store.NewMemoryProvider()
	default:
		return nil, fmt.Errorf("unknown store provider: %s", cfg.Store.Provider)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		store:  provider,
		registry: adapter.Registry{
			javdb.SourceName:  javdb.New(),
			javbus.SourceName: javbus.New(),
		},
		jar: cookies.NewJar(cfg.Cookies.Dir, logger),
	}

	if cfg.Metrics.Enabled {
		a.startMetrics()
	}

	logger.Info("application services initialized",
		zap.String("store", cfg.Store.Provider),
		zap.Strings("sources", a.registry.Names()))
	return a, nil
}

// EngineFactory returns the wiring the runner uses to build one engine
// per task. Each task gets a fresh fetcher so cookies and rate limits
// stay scoped to a single site session.
func (a *App) EngineFactory(obs crawler.Observer) runner.EngineFactory {
	return func(t task.Task, src adapter.Source) (*crawler.Engine, error) {
		opts := fetch.Options{
			UserAgent: a.cfg.Crawler.UserAgent,
			Timeout:   a.cfg.RequestTimeout(),
			Delay:     a.cfg.RequestDelay(),
		}
		if src.UsesCookies() {
			opts.Cookies = a.jar.Load(src.Name())
			opts.CookieURL = t.FinalURL
		}
		fetcher, err := fetch.NewColly(opts, a.logger)
		if err != nil {
			return nil, fmt.Errorf("fetcher for task %q: %w", t.Name, err)
		}
		return crawler.New(t, src, fetcher, a.store, a.logger, obs), nil
	}
}

// NewRunner builds the sequential task runner backed by this App's
// services.
func (a *App) NewRunner(obs crawler.Observer) *runner.Runner {
	reports := store.NewReportWriter(a.store, a.logger)
	return runner.New(a.registry, a.EngineFactory(obs), reports, a.cfg.TaskDelay(), a.logger)
}

func (a *App) startMetrics() {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/healthz", a.healthz)

	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.metrics = srv

	go func() {
		a.logger.Info("starting metrics server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		a.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Warn("write JSON response failed", zap.Error(err))
	}
}

// Close gracefully shuts down all services in the App container. It is
// called by a Cobra hook after the command finishes execution.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	if err := a.store.Close(ctx); err != nil {
		a.logger.Warn("error closing store", zap.Error(err))
	}

	// Flush buffered log entries before the process exits. Syncing
	// stderr fails on some platforms, so this stays best-effort.
	_ = a.logger.Sync()
}
