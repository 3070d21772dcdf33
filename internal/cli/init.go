// Package cli provides common CLI initialization utilities shared by
// cmd/ledger and cmd/ledger-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledger/internal/backend"
	"ledger/internal/cache"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
)

// App bundles the collaborators every binary needs.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Backend *backend.BackendResult
	Ledger  *services.LedgerService
	Cache   *cache.LRUCache[core.MonthBucket]
	Caches  *cache.Manager
}

// SetupLogger initializes structured logging at the given level and sets it
// as the default logger. Unknown levels fall back to info.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	lvl, err := log.ParseLevel(level)
	cfg.Level = lvl
	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info log level", "error", err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap loads the environment and configuration, opens the configured
// backend and wires a LedgerService with its bucket cache.
func Bootstrap(ctx context.Context) (*App, error) {
	LoadEnvFile()

	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg.LogLevel)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	buckets := cache.NewLRUCache(cfg.CacheSize, cfg.CacheTTL, core.MonthBucket.Clone)
	manager := cache.NewManager()
	manager.Register(buckets)

	opts := services.LedgerOptions{
		Cache:  buckets,
		Logger: logger,
	}
	if result.AMQP != nil {
		opts.Publisher = result.AMQP
	}

	logger.DebugContext(ctx, "Application bootstrapped", log.NewFields().
		WithOperation(log.OpStartup).
		WithComponent(log.ComponentApp).
		ToSlice()...)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Backend: result,
		Ledger:  services.NewLedgerService(result.Repository, opts),
		Cache:   buckets,
		Caches:  manager,
	}, nil
}

// Close stops cache cleanup and releases the backend.
func (a *App) Close() error {
	a.Caches.Stop()
	if a.Backend != nil && a.Backend.Cleanup != nil {
		return a.Backend.Cleanup()
	}
	return nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when cleanup is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
