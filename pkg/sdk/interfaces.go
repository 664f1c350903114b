package sdk

import (
	"context"
	"errors"

	"github.com/ilpi-dev/ilpi-store/pkg/schema"
)

// ErrMalformedImport is returned when an import blob is not JSON, has no
// employees array or holds values of the wrong type. Nothing is written in
// that case.
var ErrMalformedImport = errors.New("malformed import")

// --- Functional Interfaces (Interface Segregation) ---

// Reader fetches the whole persisted dataset.
type Reader interface {
	FetchAllData(ctx context.Context) (schema.Envelope, error)
}

// Syncer replaces one collection at a time. Each call echoes the items back.
type Syncer interface {
	SyncEmployees(ctx context.Context, items []schema.Employee) ([]schema.Employee, error)
	SyncShifts(ctx context.Context, items []schema.ShiftRecord) ([]schema.ShiftRecord, error)
	SyncVacations(ctx context.Context, items []schema.VacationRequest) ([]schema.VacationRequest, error)
}

// Administrator handles the whole-dataset operations.
type Administrator interface {
	ResetSystem(ctx context.Context) (schema.Envelope, error)
	// ImportData parses, validates and merges a raw import blob.
	ImportData(ctx context.Context, raw []byte) (schema.Envelope, error)
}

// --- Composite Interfaces ---

// API is what the staff console talks to. It does not care whether the
// store runs in-process or behind ilpi-stored.
type API interface {
	Reader
	Syncer
	Administrator
	Close() error
}
