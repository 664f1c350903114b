// Package app keeps the console's in-memory projection of the dataset and
// pushes every change through the facade optimistically.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ilpi-dev/ilpi-store/pkg/schema"
	"github.com/ilpi-dev/ilpi-store/pkg/sdk"
)

var (
	ErrNotReady       = errors.New("state not loaded yet")
	ErrLoading        = errors.New("initial load already in progress")
	ErrNotFound       = errors.New("not found")
	ErrDuplicateID    = errors.New("id already in use")
	ErrShiftClosed    = errors.New("shift already clocked out")
	ErrAlreadyDecided = errors.New("vacation request already decided")
	// ErrSyncFailed wraps the facade error after an optimistic apply.
	ErrSyncFailed = errors.New("sync failed")
)

// Phase is the load lifecycle of a State.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// collection is one projected slice plus a counter bumped on every change,
// used to tell whether a rollback would clobber a newer write.
type collection[T any] struct {
	items []T
	gen   uint64
}

func (c *collection[T]) set(items []T) {
	c.items = items
	c.gen++
}

// State is the console's view of the data. Reads never block on the facade;
// the lock is never held across a facade call.
type State struct {
	api      sdk.API
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
	rollback bool

	mu         sync.RWMutex
	phase      Phase
	ready      chan struct{}
	version    int
	lastUpdate time.Time
	employees  collection[schema.Employee]
	shifts     collection[schema.ShiftRecord]
	vacations  collection[schema.VacationRequest]
}

type Option func(*State)

// WithRollback restores the previous collection when a sync fails.
func WithRollback(enabled bool) Option { return func(s *State) { s.rollback = enabled } }

func WithLogger(l *slog.Logger) Option { return func(s *State) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *State) { s.now = now } }

// WithIDGenerator replaces the uuid generator used for new records.
func WithIDGenerator(fn func() string) Option { return func(s *State) { s.newID = fn } }

func New(api sdk.API, opts ...Option) *State {
	s := &State{
		api:   api,
		log:   slog.Default(),
		now:   time.Now,
		newID: uuid.NewString,
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init performs the one-shot initial load. Calling it again once ready is a no-op.
func (s *State) Init(ctx context.Context) error {
	s.mu.Lock()
	switch s.phase {
	case PhaseReady:
		s.mu.Unlock()
		return nil
	case PhaseLoading:
		s.mu.Unlock()
		return ErrLoading
	}
	s.phase = PhaseLoading
	s.mu.Unlock()

	env, err := s.api.FetchAllData(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.phase == PhaseLoading {
			s.phase = PhaseEmpty
		}
		return fmt.Errorf("initial load: %w", err)
	}
	if s.phase != PhaseLoading {
		// a Reset or Import finished first and already holds newer data
		return nil
	}
	s.replace(env)
	s.markReady()
	s.log.Info("state loaded", "employees", len(env.Employees), "shifts", len(env.Shifts), "vacations", len(env.Vacations))
	return nil
}

// Ready is closed once the initial load has completed.
func (s *State) Ready() <-chan struct{} { return s.ready }

func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *State) Employees() []schema.Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.employees.items)
}

func (s *State) Shifts() []schema.ShiftRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.shifts.items)
}

func (s *State) Vacations() []schema.VacationRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.vacations.items)
}

// Snapshot returns the projection as an envelope.
func (s *State) Snapshot() schema.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return schema.Envelope{
		Version:    s.version,
		Employees:  s.employees.items,
		Shifts:     s.shifts.items,
		Vacations:  s.vacations.items,
		LastUpdate: s.lastUpdate,
	}.Clone()
}

// Employee looks an employee up by id.
func (s *State) Employee(id string) (schema.Employee, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.employees.items, func(e schema.Employee) bool { return e.ID == id })
	if i < 0 {
		return schema.Employee{}, false
	}
	return s.employees.items[i], true
}

// markReady must be called with s.mu held.
func (s *State) markReady() {
	if s.phase != PhaseReady {
		s.phase = PhaseReady
		close(s.ready)
	}
}

// replace must be called with s.mu held.
func (s *State) replace(env schema.Envelope) {
	env = env.Clone()
	s.version = env.Version
	s.lastUpdate = env.LastUpdate
	s.employees.set(env.Employees)
	s.shifts.set(env.Shifts)
	s.vacations.set(env.Vacations)
}

// mutate applies fn to a copy of c under the lock, publishes the result and
// then pushes the whole collection through push with the lock released.
func mutate[T any](ctx context.Context, s *State, name string, c *collection[T], fn func([]T) ([]T, error), push func(context.Context, []T) ([]T, error)) error {
	s.mu.Lock()
	if s.phase != PhaseReady {
		s.mu.Unlock()
		return ErrNotReady
	}
	prev := c.items
	next, err := fn(slices.Clone(prev))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	c.set(next)
	gen := c.gen
	s.mu.Unlock()

	if _, err := push(ctx, slices.Clone(next)); err != nil {
		rolledBack := false
		if s.rollback {
			s.mu.Lock()
			if c.gen == gen {
				c.set(prev)
				rolledBack = true
			}
			s.mu.Unlock()
		}
		s.log.Error("sync failed", "collection", name, "rolled_back", rolledBack, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrSyncFailed, name, err)
	}
	return nil
}
