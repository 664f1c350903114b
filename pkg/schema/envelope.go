package schema

import (
	"slices"
	"time"
)

// Envelope is the single persisted document holding every collection.
type Envelope struct {
	Version    int               `json:"version"`
	Employees  []Employee        `json:"employees"`
	Shifts     []ShiftRecord     `json:"shifts"`
	Vacations  []VacationRequest `json:"vacations"`
	LastUpdate time.Time         `json:"lastUpdate"`
}

// Normalize replaces nil collections with empty ones so they encode as [].
func (e Envelope) Normalize() Envelope {
	if e.Employees == nil {
		e.Employees = []Employee{}
	}
	if e.Shifts == nil {
		e.Shifts = []ShiftRecord{}
	}
	if e.Vacations == nil {
		e.Vacations = []VacationRequest{}
	}
	return e
}

// Clone returns a copy that shares no collection backing arrays with e.
func (e Envelope) Clone() Envelope {
	e.Employees = slices.Clone(e.Employees)
	e.Shifts = slices.Clone(e.Shifts)
	e.Vacations = slices.Clone(e.Vacations)
	return e.Normalize()
}

// Patch is a partial envelope. A nil field leaves the stored value untouched;
// a non-nil collection replaces the stored collection as a whole.
type Patch struct {
	Version    *int               `json:"version,omitempty"`
	Employees  *[]Employee        `json:"employees,omitempty"`
	Shifts     *[]ShiftRecord     `json:"shifts,omitempty"`
	Vacations  *[]VacationRequest `json:"vacations,omitempty"`
	LastUpdate *time.Time         `json:"lastUpdate,omitempty"`
}

// AsPatch turns a full envelope into a patch that sets every field.
func (e Envelope) AsPatch() Patch {
	return Patch{
		Version:    &e.Version,
		Employees:  &e.Employees,
		Shifts:     &e.Shifts,
		Vacations:  &e.Vacations,
		LastUpdate: &e.LastUpdate,
	}
}

// Apply merges p over e field by field. The merge is shallow.
func (e Envelope) Apply(p Patch) Envelope {
	if p.Version != nil {
		e.Version = *p.Version
	}
	if p.Employees != nil {
		e.Employees = slices.Clone(*p.Employees)
	}
	if p.Shifts != nil {
		e.Shifts = slices.Clone(*p.Shifts)
	}
	if p.Vacations != nil {
		e.Vacations = slices.Clone(*p.Vacations)
	}
	if p.LastUpdate != nil {
		e.LastUpdate = *p.LastUpdate
	}
	return e.Normalize()
}

func EmployeesPatch(items []Employee) Patch        { return Patch{Employees: &items} }
func ShiftsPatch(items []ShiftRecord) Patch        { return Patch{Shifts: &items} }
func VacationsPatch(items []VacationRequest) Patch { return Patch{Vacations: &items} }
