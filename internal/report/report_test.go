package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/ilpi-dev/ilpi-store/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func clock(s string) *string { return &s }

func sampleEnvelope() schema.Envelope {
	return schema.Envelope{
		Employees: []schema.Employee{
			{ID: "1", FirstName: "Juan", LastName: "García", Department: schema.DepartmentManagement, Status: schema.StatusActive},
			{ID: "2", FirstName: "Elena", LastName: "Ruiz", Department: schema.DepartmentKitchen, Status: schema.StatusActive},
			{ID: "3", FirstName: "Luis", LastName: "Mora", Department: schema.DepartmentBar, Status: schema.StatusVacation},
		},
		Shifts: []schema.ShiftRecord{
			// 2024-05-06 is a Monday
			{ID: "a", EmployeeID: "2", Date: "2024-05-06", EntryTime: "09:00", ExitTime: clock("17:30")},
			{ID: "b", EmployeeID: "2", Date: "2024-05-07", EntryTime: "20:00", ExitTime: clock("02:00")},
			{ID: "c", EmployeeID: "1", Date: "2024-05-06", EntryTime: "10:00"},
			{ID: "d", EmployeeID: "9", Date: "2024-05-12", EntryTime: "12:00", ExitTime: clock("14:00")},
			{ID: "e", EmployeeID: "3", Date: "06/05/2024", EntryTime: "12:00", ExitTime: clock("14:00")},
		},
		Vacations: []schema.VacationRequest{
			{ID: "v1", EmployeeID: "3", Status: schema.VacationApproved},
			{ID: "v2", EmployeeID: "2", Status: schema.VacationPending},
		},
	}
}

func TestDuration(t *testing.T) {
	start, hours, ok := Duration(schema.ShiftRecord{Date: "2024-05-07", EntryTime: "22:15", ExitTime: clock("01:45")})
	require.True(t, ok)
	assert.Equal(t, time.Tuesday, start.Weekday())
	assert.InDelta(t, 3.5, hours, 1e-9)

	_, _, ok = Duration(schema.ShiftRecord{Date: "2024-05-07", EntryTime: "09:00"})
	assert.False(t, ok, "open shift has no duration")

	_, _, ok = Duration(schema.ShiftRecord{Date: "2024-05-07", EntryTime: "09:00", ExitTime: clock("late")})
	assert.False(t, ok)

	// console backups carry locale times
	start, hours, ok = Duration(schema.ShiftRecord{Date: "2024-05-07", EntryTime: "02:05 PM", ExitTime: clock("10:35 PM")})
	require.True(t, ok)
	assert.Equal(t, 14, start.Hour())
	assert.InDelta(t, 8.5, hours, 1e-9)
}

func TestBuild(t *testing.T) {
	s := Build(sampleEnvelope())

	assert.Equal(t, 3, s.TotalEmployees)
	assert.Equal(t, 2, s.Headcount[schema.StatusActive])
	assert.Equal(t, 1, s.Headcount[schema.StatusVacation])
	assert.Equal(t, 1, s.OpenShifts)
	assert.Equal(t, 4, s.ClosedShifts)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.PendingVacations)
	assert.InDelta(t, 16.5, s.TotalHours, 1e-9)

	require.NotEmpty(t, s.Employees)
	assert.Equal(t, "2", s.Employees[0].EmployeeID)
	assert.InDelta(t, 14.5, s.Employees[0].Hours, 1e-9)
	assert.Equal(t, 2, s.Employees[0].Shifts)

	hours := map[schema.Department]float64{}
	for _, d := range s.Departments {
		hours[d.Department] = d.Hours
	}
	assert.InDelta(t, 14.5, hours[schema.DepartmentKitchen], 1e-9)
	assert.Zero(t, hours[schema.DepartmentBar])

	require.Len(t, s.Weekdays, 7)
	assert.Equal(t, time.Monday, s.Weekdays[0].Weekday)
	assert.InDelta(t, 8.5, s.Weekdays[0].Hours, 1e-9)
	assert.Equal(t, time.Sunday, s.Weekdays[6].Weekday)
	assert.InDelta(t, 2.0, s.Weekdays[6].Hours, 1e-9)

	assert.Contains(t, s.Warnings, "shift d references missing employee 9")
}

func TestBuild_Empty(t *testing.T) {
	s := Build(schema.Envelope{})
	assert.Zero(t, s.TotalHours)
	assert.Empty(t, s.Employees)
	assert.Len(t, s.Departments, len(schema.Departments))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, Build(sampleEnvelope())))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetEmployees, SheetDepartments}, f.GetSheetList())

	rows, err := f.GetRows(SheetEmployees)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, []string{"ID", "Nombre", "Departamento", "Turnos", "Horas"}, rows[0])
	assert.Equal(t, "Elena Ruiz", rows[1][1])
	assert.Equal(t, "14.5", rows[1][4])

	total, err := f.GetCellValue(SheetSummary, "B6")
	require.NoError(t, err)
	assert.Equal(t, "16.5", total)
}
