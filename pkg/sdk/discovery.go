package sdk

import (
	"context"
	"log/slog"

	"github.com/ilpi-dev/ilpi-store/internal/config"
	"github.com/ilpi-dev/ilpi-store/internal/controller"
	"github.com/ilpi-dev/ilpi-store/internal/engine"
)

// New initializes the facade based on the configuration.
// It returns the interface, so the app doesn't care if it's local or remote.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (API, error) {
	if log == nil {
		log = slog.Default()
	}

	// 1. Check if a remote store is configured
	if addr := cfg.Client.StoreAddr; addr != "" {
		opts := []ClientOption{WithClientLogger(log)}
		if cfg.Server.DisableTLS {
			opts = append(opts, WithoutTLS())
		}
		client, err := Connect(addr, opts...)
		if err == nil {
			return client, nil
		}
		log.Warn("remote store unreachable, falling back to embedded mode", "addr", addr, "error", err)
	}

	// 2. Fallback to embedded mode.
	// This uses the same engine the daemon uses, but inside the app process.
	return NewEmbedded(ctx, cfg, log)
}

// NewEmbedded builds the in-process stack: backend, store and controller.
func NewEmbedded(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Local, error) {
	backend, err := engine.OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	store := engine.NewStore(backend,
		engine.WithKey(cfg.Storage.Key),
		engine.WithLogger(log),
	)
	ctrl := controller.New(store,
		controller.WithLatency(cfg.Sync.Latency),
		controller.WithLogger(log),
	)
	return NewLocal(ctrl, backend), nil
}
