package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/ilpi-dev/ilpi-store/pkg/schema"
)

func byEmployeeID(id string) func(schema.Employee) bool {
	return func(e schema.Employee) bool { return e.ID == id }
}

// AddEmployee appends e, assigning an id when it has none.
func (s *State) AddEmployee(ctx context.Context, e schema.Employee) (schema.Employee, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if err := schema.ValidateEmployees([]schema.Employee{e}); err != nil {
		return schema.Employee{}, err
	}
	err := mutate(ctx, s, "employees", &s.employees, func(items []schema.Employee) ([]schema.Employee, error) {
		if slices.ContainsFunc(items, byEmployeeID(e.ID)) {
			return nil, fmt.Errorf("employee %s: %w", e.ID, ErrDuplicateID)
		}
		return append(items, e), nil
	}, s.api.SyncEmployees)
	return e, err
}

// UpdateEmployee replaces the employee with the same id.
func (s *State) UpdateEmployee(ctx context.Context, e schema.Employee) error {
	if err := schema.ValidateEmployees([]schema.Employee{e}); err != nil {
		return err
	}
	return mutate(ctx, s, "employees", &s.employees, func(items []schema.Employee) ([]schema.Employee, error) {
		i := slices.IndexFunc(items, byEmployeeID(e.ID))
		if i < 0 {
			return nil, fmt.Errorf("employee %s: %w", e.ID, ErrNotFound)
		}
		items[i] = e
		return items, nil
	}, s.api.SyncEmployees)
}

// DeleteEmployee removes an employee. Their shifts and vacations are kept.
func (s *State) DeleteEmployee(ctx context.Context, id string) error {
	return mutate(ctx, s, "employees", &s.employees, func(items []schema.Employee) ([]schema.Employee, error) {
		i := slices.IndexFunc(items, byEmployeeID(id))
		if i < 0 {
			return nil, fmt.Errorf("employee %s: %w", id, ErrNotFound)
		}
		return slices.Delete(items, i, i+1), nil
	}, s.api.SyncEmployees)
}

// ClockIn opens a shift for employeeID stamped with the current date and
// time. The newest shift goes first.
func (s *State) ClockIn(ctx context.Context, employeeID string, at *schema.GeoPoint) (schema.ShiftRecord, error) {
	if _, ok := s.Employee(employeeID); !ok {
		return schema.ShiftRecord{}, fmt.Errorf("employee %s: %w", employeeID, ErrNotFound)
	}
	now := s.now()
	shift := schema.ShiftRecord{
		ID:         s.newID(),
		EmployeeID: employeeID,
		Date:       now.Format(schema.DateLayout),
		EntryTime:  now.Format(schema.ClockLayout),
		Location:   at,
	}
	err := mutate(ctx, s, "shifts", &s.shifts, func(items []schema.ShiftRecord) ([]schema.ShiftRecord, error) {
		return append([]schema.ShiftRecord{shift}, items...), nil
	}, s.api.SyncShifts)
	return shift, err
}

// ClockOut closes an open shift at the current time.
func (s *State) ClockOut(ctx context.Context, shiftID string) (schema.ShiftRecord, error) {
	exit := s.now().Format(schema.ClockLayout)
	var closed schema.ShiftRecord
	err := mutate(ctx, s, "shifts", &s.shifts, func(items []schema.ShiftRecord) ([]schema.ShiftRecord, error) {
		i := slices.IndexFunc(items, func(sh schema.ShiftRecord) bool { return sh.ID == shiftID })
		if i < 0 {
			return nil, fmt.Errorf("shift %s: %w", shiftID, ErrNotFound)
		}
		if !items[i].Open() {
			return nil, fmt.Errorf("shift %s: %w", shiftID, ErrShiftClosed)
		}
		items[i].ExitTime = &exit
		closed = items[i]
		return items, nil
	}, s.api.SyncShifts)
	return closed, err
}

// SetShifts replaces the shift collection as a whole.
func (s *State) SetShifts(ctx context.Context, items []schema.ShiftRecord) error {
	return mutate(ctx, s, "shifts", &s.shifts, func([]schema.ShiftRecord) ([]schema.ShiftRecord, error) {
		return slices.Clone(items), nil
	}, s.api.SyncShifts)
}

// RequestVacation files a pending request for an inclusive date range.
func (s *State) RequestVacation(ctx context.Context, employeeID, start, end string) (schema.VacationRequest, error) {
	if _, ok := s.Employee(employeeID); !ok {
		return schema.VacationRequest{}, fmt.Errorf("employee %s: %w", employeeID, ErrNotFound)
	}
	req := schema.VacationRequest{
		ID:         s.newID(),
		EmployeeID: employeeID,
		StartDate:  start,
		EndDate:    end,
		Status:     schema.VacationPending,
	}
	if err := schema.ValidateVacations([]schema.VacationRequest{req}); err != nil {
		return schema.VacationRequest{}, err
	}
	err := mutate(ctx, s, "vacations", &s.vacations, func(items []schema.VacationRequest) ([]schema.VacationRequest, error) {
		return append(items, req), nil
	}, s.api.SyncVacations)
	return req, err
}

// DecideVacation approves or rejects a pending request.
func (s *State) DecideVacation(ctx context.Context, id string, approve bool) (schema.VacationRequest, error) {
	status := schema.VacationRejected
	if approve {
		status = schema.VacationApproved
	}
	var decided schema.VacationRequest
	err := mutate(ctx, s, "vacations", &s.vacations, func(items []schema.VacationRequest) ([]schema.VacationRequest, error) {
		i := slices.IndexFunc(items, func(v schema.VacationRequest) bool { return v.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("vacation %s: %w", id, ErrNotFound)
		}
		if items[i].Status != schema.VacationPending {
			return nil, fmt.Errorf("vacation %s is %s: %w", id, items[i].Status, ErrAlreadyDecided)
		}
		items[i].Status = status
		decided = items[i]
		return items, nil
	}, s.api.SyncVacations)
	return decided, err
}

// SetVacations replaces the vacation collection as a whole.
func (s *State) SetVacations(ctx context.Context, items []schema.VacationRequest) error {
	return mutate(ctx, s, "vacations", &s.vacations, func([]schema.VacationRequest) ([]schema.VacationRequest, error) {
		return slices.Clone(items), nil
	}, s.api.SyncVacations)
}

// Reset wipes the stored data and reloads the projection from the seed.
func (s *State) Reset(ctx context.Context) error {
	env, err := s.api.ResetSystem(ctx)
	if err != nil {
		s.log.Error("reset failed", "error", err)
		return fmt.Errorf("%w: reset: %w", ErrSyncFailed, err)
	}
	s.reload(env)
	s.log.Info("state reset")
	return nil
}

// Import merges a raw backup into the store and reloads the projection.
// A malformed or invalid blob changes nothing.
func (s *State) Import(ctx context.Context, raw []byte) error {
	env, err := s.api.ImportData(ctx, raw)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	s.reload(env)
	s.log.Info("state imported", "employees", len(env.Employees))
	return nil
}

func (s *State) reload(env schema.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(env)
	s.markReady()
}
