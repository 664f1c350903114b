package sdk

import (
	"context"
	"io"

	"github.com/ilpi-dev/ilpi-store/internal/controller"
	"github.com/ilpi-dev/ilpi-store/pkg/schema"
)

// Local serves the API from an in-process Controller.
type Local struct {
	ctrl    *controller.Controller
	backend io.Closer
}

// NewLocal wraps ctrl. backend, if not nil, is closed by Close.
func NewLocal(ctrl *controller.Controller, backend io.Closer) *Local {
	return &Local{ctrl: ctrl, backend: backend}
}

func (l *Local) FetchAllData(ctx context.Context) (schema.Envelope, error) {
	return l.ctrl.GetInitialData(ctx)
}

func (l *Local) SyncEmployees(ctx context.Context, items []schema.Employee) ([]schema.Employee, error) {
	return l.ctrl.UpdateEmployees(ctx, items)
}

func (l *Local) SyncShifts(ctx context.Context, items []schema.ShiftRecord) ([]schema.ShiftRecord, error) {
	return l.ctrl.UpdateShifts(ctx, items)
}

func (l *Local) SyncVacations(ctx context.Context, items []schema.VacationRequest) ([]schema.VacationRequest, error) {
	return l.ctrl.UpdateVacations(ctx, items)
}

func (l *Local) ResetSystem(ctx context.Context) (schema.Envelope, error) {
	return l.ctrl.ResetSystem(ctx)
}

func (l *Local) ImportData(ctx context.Context, raw []byte) (schema.Envelope, error) {
	p, err := ParseImport(raw)
	if err != nil {
		return schema.Envelope{}, err
	}
	return l.ctrl.ImportDatabase(ctx, p)
}

func (l *Local) Close() error {
	if l.backend == nil {
		return nil
	}
	return l.backend.Close()
}
