// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/siena/internal/events"
	"github.com/starford/siena/internal/index"
	"github.com/starford/siena/internal/mcpserver"
	"github.com/starford/siena/internal/recordservice"
	"github.com/starford/siena/internal/storage"
)

// NewLogger builds the structured JSON logger. Logs go to stderr because
// stdout carries the MCP protocol.
func NewLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// Backend is the opened store and, when configured, its SQLite mirror.
type Backend struct {
	Store   *storage.FS
	Index   *index.DB
	Service *recordservice.Service
}

// Close releases the index, if one was opened.
func (b *Backend) Close() error {
	if b.Index == nil {
		return nil
	}
	return b.Index.Close()
}

// Open prepares the store directory and, when configured, opens and syncs
// the index.
func Open(cfg *Config, logger *slog.Logger) (*Backend, error) {
	// Ensure store directory exists.
	if err := os.MkdirAll(cfg.Store.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Store.Root, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	b := &Backend{Store: store}
	svcOpts := []recordservice.Option{recordservice.WithLogger(logger)}

	if cfg.Index.Enabled() {
		db, err := index.Open(cfg.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		if err := index.Sync(db, store, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
		b.Index = db
		svcOpts = append(svcOpts, recordservice.WithIndex(db))
	}

	b.Service = recordservice.NewService(store, svcOpts...)
	return b, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{in: os.Stdin, out: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := NewLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("store_root", cfg.Store.Root),
		slog.String("index_path", cfg.Index.Path),
		slog.Bool("index_watch", cfg.Index.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	backend, err := Open(cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	srv := mcpserver.New(backend.Service, cfg.MCP.Name)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// Keep the mirror in step with the store and tell clients about it.
	if backend.Index != nil && cfg.Index.Watch {
		broker := events.NewBroker(cfg.Index.Throttle)
		defer broker.Close()

		sub := broker.Subscribe()
		g.Go(func() error {
			srv.Forward(gCtx, sub)
			return nil
		})

		g.Go(func() error {
			return index.Watch(gCtx, backend.Index, backend.Store, logger, func(kind, collection, id string) {
				logger.Info("record changed",
					slog.String("kind", kind),
					slog.String("collection", collection),
					slog.String("id", id))
				broker.PublishRecordEvent(kind, collection, id)
			})
		})
	}

	// Serve MCP until the client closes stdin.
	g.Go(func() error {
		defer cancel()
		logger.Info("MCP server starting", slog.String("name", cfg.MCP.Name))
		if err := srv.Serve(gCtx, app.in, app.out); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server error: %w", err)
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
			cancel()
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
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
