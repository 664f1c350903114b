// Package engine holds the durable side of the ILPI store: the keyed
// backends and the versioned envelope store built on top of them.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ilpi-dev/ilpi-store/pkg/schema"
)

var (
	// ErrKeyNotFound is returned by a Backend when the key holds no value.
	ErrKeyNotFound = errors.New("key not found")
	// ErrNewerSchema is returned by Save when the stored envelope was written
	// by a newer build; saving would lower its version.
	ErrNewerSchema = errors.New("stored envelope has a newer schema version")
)

// CurrentVersion is the envelope schema version this build writes.
const CurrentVersion = 2

// DefaultKey is the key the envelope is stored under.
const DefaultKey = "ILPI_DATABASE"

// Backend is durable keyed storage for raw documents.
// Every implementation must replace a value in a single write.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	io.Closer
}

// Store owns the persisted envelope. All operations run under one mutex so a
// read-modify-write is never interleaved with another.
type Store struct {
	mu         sync.Mutex
	backend    Backend
	key        string
	now        func() time.Time
	seed       func() schema.Envelope
	migrations Migrations
	log        *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

func WithKey(key string) Option { return func(s *Store) { s.key = key } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// WithSeed replaces the data used to populate an empty store.
func WithSeed(seed func() schema.Envelope) Option { return func(s *Store) { s.seed = seed } }

func WithMigrations(m Migrations) Option { return func(s *Store) { s.migrations = m } }

// NewStore wraps a backend. The backend stays owned by the caller.
func NewStore(b Backend, opts ...Option) *Store {
	s := &Store{
		backend:    b,
		key:        DefaultKey,
		now:        func() time.Time { return time.Now().UTC() },
		seed:       SeedData,
		migrations: DefaultMigrations(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the current envelope, seeding or migrating it first if needed.
func (s *Store) Load(ctx context.Context) (schema.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Save merges p over the current envelope, stamps it with CurrentVersion and
// the current time, and persists the result.
func (s *Store) Save(ctx context.Context, p schema.Patch) (schema.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return schema.Envelope{}, err
	}
	if current.Version > CurrentVersion {
		return schema.Envelope{}, fmt.Errorf("save: %w (stored v%d, build v%d)", ErrNewerSchema, current.Version, CurrentVersion)
	}
	return s.write(ctx, current.Apply(p))
}

// Clear deletes the envelope and re-seeds it.
func (s *Store) Clear(ctx context.Context) (schema.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, s.key); err != nil && !errors.Is(err, ErrKeyNotFound) {
		return schema.Envelope{}, fmt.Errorf("clear: %w", err)
	}
	s.log.Info("store cleared", "key", s.key)
	return s.load(ctx)
}

// load must be called with s.mu held.
func (s *Store) load(ctx context.Context) (schema.Envelope, error) {
	raw, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, ErrKeyNotFound) {
		s.log.Info("seeding empty store", "key", s.key)
		return s.write(ctx, s.seed())
	}
	if err != nil {
		return schema.Envelope{}, fmt.Errorf("load %s: %w", s.key, err)
	}

	var env schema.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return s.recoverCorrupt(ctx, raw, err)
	}

	switch {
	case env.Version < CurrentVersion:
		from := env.Version
		migrated, err := s.migrations.Apply(env)
		if err != nil {
			return schema.Envelope{}, fmt.Errorf("migrate from v%d: %w", from, err)
		}
		s.log.Info("migrated envelope", "from", from, "to", CurrentVersion)
		return s.write(ctx, migrated)
	case env.Version > CurrentVersion:
		s.log.Warn("envelope written by a newer build", "stored", env.Version, "current", CurrentVersion)
	}
	return env.Normalize(), nil
}

// recoverCorrupt moves an undecodable value aside and re-seeds.
func (s *Store) recoverCorrupt(ctx context.Context, raw []byte, cause error) (schema.Envelope, error) {
	quarantine := s.key + ".corrupt"
	if err := s.backend.Put(ctx, quarantine, raw); err != nil {
		return schema.Envelope{}, fmt.Errorf("quarantine corrupt envelope: %w", err)
	}
	s.log.Warn("stored envelope is corrupt, re-seeding", "key", s.key, "moved_to", quarantine, "error", cause)
	return s.write(ctx, s.seed())
}

func (s *Store) write(ctx context.Context, env schema.Envelope) (schema.Envelope, error) {
	env = env.Normalize()
	env.Version = CurrentVersion
	env.LastUpdate = s.now()

	bytes, err := json.Marshal(env)
	if err != nil {
		return schema.Envelope{}, err
	}
	if err := s.backend.Put(ctx, s.key, bytes); err != nil {
		return schema.Envelope{}, fmt.Errorf("save %s: %w", s.key, err)
	}
	return env, nil
}
