package engine

import (
	"context"
	"fmt"

	"github.com/ilpi-dev/ilpi-store/pkg/schema"
)

// Migration upgrades an envelope written at one version to the next one.
type Migration func(schema.Envelope) (schema.Envelope, error)

// Migrations maps a source version to the step that upgrades it by one.
// Versions without a registered step are only re-stamped.
type Migrations map[int]Migration

// DefaultMigrations returns the upgrade steps known to this build.
func DefaultMigrations() Migrations {
	return Migrations{
		// v0 files predate vacations and may miss any collection.
		0: func(env schema.Envelope) (schema.Envelope, error) { return env.Normalize(), nil },
		// v1 -> v2 added personal fields to Employee, all optional.
		1: func(env schema.Envelope) (schema.Envelope, error) { return env, nil },
	}
}

// Apply runs every step from env.Version up to CurrentVersion in order.
func (m Migrations) Apply(env schema.Envelope) (schema.Envelope, error) {
	v := env.Version
	if v < 0 {
		v = 0
	}
	for ; v < CurrentVersion; v++ {
		if step, ok := m[v]; ok {
			next, err := step(env)
			if err != nil {
				return schema.Envelope{}, fmt.Errorf("step v%d->v%d: %w", v, v+1, err)
			}
			env = next
		}
		env.Version = v + 1
	}
	return env, nil
}

// Transfer copies the raw document stored under key from src to dst.
// This works for:
// - file -> SQLite/PostgreSQL (the upgrade)
// - any backend -> file (backup/offline)
func Transfer(ctx context.Context, src, dst Backend, key string) error {
	raw, err := src.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read %s from source: %w", key, err)
	}
	if err := dst.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write %s to destination: %w", key, err)
	}
	return nil
}
