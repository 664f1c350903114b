// Package controller fronts the Store the way a remote service would: every
// call pays a fixed round-trip delay before touching storage.
package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/ilpi-dev/ilpi-store/internal/engine"
	"github.com/ilpi-dev/ilpi-store/pkg/schema"
)

// DefaultLatency is the simulated round-trip.
const DefaultLatency = 300 * time.Millisecond

type Controller struct {
	store   *engine.Store
	latency time.Duration
	log     *slog.Logger
}

type Option func(*Controller)

// WithLatency sets the simulated delay. Zero disables it.
func WithLatency(d time.Duration) Option { return func(c *Controller) { c.latency = d } }

func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.log = l } }

func New(store *engine.Store, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		latency: DefaultLatency,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks for the configured latency. A cancelled wait returns ctx.Err()
// and the caller must not touch the store.
func (c *Controller) wait(ctx context.Context) error {
	if c.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Controller) GetInitialData(ctx context.Context) (schema.Envelope, error) {
	if err := c.wait(ctx); err != nil {
		return schema.Envelope{}, err
	}
	return c.store.Load(context.WithoutCancel(ctx))
}

// UpdateEmployees replaces the employee collection and echoes it back.
func (c *Controller) UpdateEmployees(ctx context.Context, items []schema.Employee) ([]schema.Employee, error) {
	if err := c.save(ctx, "employees", schema.EmployeesPatch(items)); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Controller) UpdateShifts(ctx context.Context, items []schema.ShiftRecord) ([]schema.ShiftRecord, error) {
	if err := c.save(ctx, "shifts", schema.ShiftsPatch(items)); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Controller) UpdateVacations(ctx context.Context, items []schema.VacationRequest) ([]schema.VacationRequest, error) {
	if err := c.save(ctx, "vacations", schema.VacationsPatch(items)); err != nil {
		return nil, err
	}
	return items, nil
}

// ResetSystem wipes the stored envelope and returns the re-seeded data.
func (c *Controller) ResetSystem(ctx context.Context) (schema.Envelope, error) {
	if err := c.wait(ctx); err != nil {
		return schema.Envelope{}, err
	}
	env, err := c.store.Clear(context.WithoutCancel(ctx))
	if err != nil {
		return schema.Envelope{}, err
	}
	c.log.Info("system reset")
	return env, nil
}

// ImportDatabase merges an already validated import over the stored envelope.
func (c *Controller) ImportDatabase(ctx context.Context, p schema.Patch) (schema.Envelope, error) {
	if err := c.wait(ctx); err != nil {
		return schema.Envelope{}, err
	}
	env, err := c.store.Save(context.WithoutCancel(ctx), p)
	if err != nil {
		return schema.Envelope{}, err
	}
	c.log.Info("database imported", "employees", len(env.Employees), "shifts", len(env.Shifts), "vacations", len(env.Vacations))
	return env, nil
}

func (c *Controller) save(ctx context.Context, collection string, p schema.Patch) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if _, err := c.store.Save(context.WithoutCancel(ctx), p); err != nil {
		c.log.Error("sync failed", "collection", collection, "error", err)
		return err
	}
	c.log.Debug("synced", "collection", collection)
	return nil
}
