package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ilpi-dev/ilpi-store/internal/config"
	"github.com/ilpi-dev/ilpi-store/internal/vault"
)

// OpenBackend builds the backend selected in cfg, sealed when a master key is set.
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	b, err := openRaw(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MasterKey == "" {
		return b, nil
	}

	key, err := vault.ParseKey(cfg.MasterKey)
	if err != nil {
		b.Close()
		return nil, err
	}
	return NewSealedBackend(b, key), nil
}

func openRaw(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return NewFileBackend(cfg.DataDir)
	case config.BackendMemory:
		return NewMemBackend(nil), nil
	case config.BackendSQLite:
		return OpenSQLite(filepath.Join(cfg.DataDir, "ilpi.db"))
	case config.BackendBadger:
		return OpenBadger(filepath.Join(cfg.DataDir, "badger"))
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.DatabaseURL)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
