// Package schema defines the versioned records persisted by the ILPI store.
package schema

import (
	"bytes"
	"encoding/json"
)

// Role is the access level of an employee inside the console.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleModerator Role = "Moderador"
	RoleEmployee  Role = "Empleado"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleEmployee:
		return true
	}
	return false
}

// Department is the area of the restaurant an employee works in.
type Department string

const (
	DepartmentKitchen    Department = "Cocina"
	DepartmentService    Department = "Atención al Público"
	DepartmentBar        Department = "Barra"
	DepartmentManagement Department = "Dirección"
)

// Departments lists every department in display order.
var Departments = []Department{DepartmentKitchen, DepartmentService, DepartmentBar, DepartmentManagement}

func (d Department) Valid() bool {
	for _, known := range Departments {
		if d == known {
			return true
		}
	}
	return false
}

// StaffStatus is the current availability of an employee.
type StaffStatus string

const (
	StatusActive   StaffStatus = "Activo"
	StatusVacation StaffStatus = "Vacaciones"
	StatusAbsent   StaffStatus = "Ausente"
	StatusInactive StaffStatus = "Inactivo"
)

func (s StaffStatus) Valid() bool {
	switch s {
	case StatusActive, StatusVacation, StatusAbsent, StatusInactive:
		return true
	}
	return false
}

// VacationStatus is the decision state of a vacation request.
// A request starts Pending and moves to Approved or Rejected exactly once.
type VacationStatus string

const (
	VacationPending  VacationStatus = "Pendiente"
	VacationApproved VacationStatus = "Aprobado"
	VacationRejected VacationStatus = "Rechazado"
)

func (s VacationStatus) Valid() bool {
	switch s {
	case VacationPending, VacationApproved, VacationRejected:
		return true
	}
	return false
}

// ShiftType is the part of the day a team covers.
type ShiftType string

const (
	ShiftMorning   ShiftType = "Mañana"
	ShiftAfternoon ShiftType = "Tarde"
	ShiftNight     ShiftType = "Noche"
)

func (s ShiftType) Valid() bool {
	switch s {
	case ShiftMorning, ShiftAfternoon, ShiftNight:
		return true
	}
	return false
}

// Date and clock layouts used on the wire.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// EmergencyContact is the person to call if something happens during a shift.
// The console stores it as free text ("Nombre y Teléfono"); that form decodes
// into Name and is written back as a plain string.
type EmergencyContact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

func (c *EmergencyContact) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = EmergencyContact{Name: text}
		return nil
	}
	type plain EmergencyContact
	var p plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*c = EmergencyContact(p)
	return nil
}

func (c EmergencyContact) MarshalJSON() ([]byte, error) {
	if c.Phone == "" && c.Relationship == "" {
		return json.Marshal(c.Name)
	}
	type plain EmergencyContact
	return json.Marshal(plain(c))
}

// Employee is a member of staff. ID is assigned on creation and never changes.
// Email and DNI are not required to be unique.
type Employee struct {
	ID               string            `json:"id" validate:"required"`
	FirstName        string            `json:"firstName" validate:"required"`
	LastName         string            `json:"lastName" validate:"required"`
	Email            string            `json:"email" validate:"omitempty,email"`
	Phone            string            `json:"phone"`
	DNI              string            `json:"dni,omitempty"`
	Address          string            `json:"address,omitempty"`
	BirthDate        string            `json:"birthDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MaritalStatus    string            `json:"maritalStatus,omitempty"`
	Gender           string            `json:"gender,omitempty"`
	Role             Role              `json:"role" validate:"role"`
	Department       Department        `json:"department" validate:"department"`
	Status           StaffStatus       `json:"status" validate:"staffstatus"`
	HireDate         string            `json:"hireDate" validate:"omitempty,datetime=2006-01-02"`
	ProfileImage     string            `json:"profileImage"`
	EmergencyContact *EmergencyContact `json:"emergencyContact,omitempty"`
}

// FullName joins first and last name.
func (e Employee) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// GeoPoint is where a clock-in happened.
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// ShiftRecord is one clock-in. It is open while ExitTime is nil.
// EmployeeID is not checked against the employee collection.
type ShiftRecord struct {
	ID         string    `json:"id" validate:"required"`
	EmployeeID string    `json:"employeeId" validate:"required"`
	Date       string    `json:"date" validate:"required,datetime=2006-01-02"`
	EntryTime  string    `json:"entryTime" validate:"required,clock"`
	ExitTime   *string   `json:"exitTime,omitempty" validate:"omitempty,clock"`
	Location   *GeoPoint `json:"location,omitempty"`
}

// Open reports whether the shift has not been clocked out yet.
func (s ShiftRecord) Open() bool {
	return s.ExitTime == nil
}

// VacationRequest is a leave request for an inclusive date range.
type VacationRequest struct {
	ID         string         `json:"id" validate:"required"`
	EmployeeID string         `json:"employeeId" validate:"required"`
	StartDate  string         `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string         `json:"endDate" validate:"required,datetime=2006-01-02"`
	Status     VacationStatus `json:"status" validate:"vacationstatus"`
}

// Team groups employees of one department on a shift type.
// Not persisted in the envelope yet.
type Team struct {
	ID         string     `json:"id" validate:"required"`
	Name       string     `json:"name" validate:"required"`
	Department Department `json:"department" validate:"department"`
	Members    []string   `json:"members"`
	ShiftType  ShiftType  `json:"shiftType" validate:"shifttype"`
}

// AbsenceRecord is a day an employee missed. Not persisted in the envelope yet.
type AbsenceRecord struct {
	ID         string `json:"id" validate:"required"`
	EmployeeID string `json:"employeeId" validate:"required"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason     string `json:"reason"`
	Justified  bool   `json:"justified"`
}
