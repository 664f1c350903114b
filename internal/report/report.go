// Package report aggregates the staff dataset into the figures shown on the
// dashboard and the hours export.
package report

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/ilpi-dev/ilpi-store/pkg/schema"
)

type EmployeeHours struct {
	EmployeeID string            `json:"employeeId"`
	Name       string            `json:"name"`
	Department schema.Department `json:"department,omitempty"`
	Shifts     int               `json:"shifts"`
	Hours      float64           `json:"hours"`
}

type DepartmentHours struct {
	Department schema.Department `json:"department"`
	Employees  int               `json:"employees"`
	Hours      float64           `json:"hours"`
}

type WeekdayHours struct {
	Weekday time.Weekday `json:"weekday"`
	Hours   float64      `json:"hours"`
}

// Summary is the aggregate view of one envelope.
type Summary struct {
	Headcount        map[schema.StaffStatus]int `json:"headcount"`
	TotalEmployees   int                        `json:"totalEmployees"`
	OpenShifts       int                        `json:"openShifts"`
	ClosedShifts     int                        `json:"closedShifts"`
	PendingVacations int                        `json:"pendingVacations"`
	TotalHours       float64                    `json:"totalHours"`
	Employees        []EmployeeHours            `json:"employees"`
	Departments      []DepartmentHours          `json:"departments"`
	Weekdays         []WeekdayHours             `json:"weekdays"`
	// Skipped counts closed shifts whose date or times could not be parsed.
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings"`
}

// Build computes the summary. Only closed shifts contribute hours; a shift
// whose exit is before its entry is taken to end the next day.
func Build(env schema.Envelope) Summary {
	s := Summary{
		Headcount:      make(map[schema.StaffStatus]int),
		TotalEmployees: len(env.Employees),
		Warnings:       schema.Audit(env),
	}

	byID := make(map[string]*EmployeeHours, len(env.Employees))
	deps := make(map[schema.Department]*DepartmentHours, len(schema.Departments))
	for _, d := range schema.Departments {
		deps[d] = &DepartmentHours{Department: d}
	}
	for _, e := range env.Employees {
		s.Headcount[e.Status]++
		if _, dup := byID[e.ID]; dup {
			continue
		}
		byID[e.ID] = &EmployeeHours{EmployeeID: e.ID, Name: e.FullName(), Department: e.Department}
		if d, ok := deps[e.Department]; ok {
			d.Employees++
		}
	}

	var weekdays [7]float64
	for _, sh := range env.Shifts {
		if sh.Open() {
			s.OpenShifts++
			continue
		}
		s.ClosedShifts++

		start, hours, ok := Duration(sh)
		if !ok {
			s.Skipped++
			continue
		}
		s.TotalHours += hours
		weekdays[start.Weekday()] += hours

		eh, known := byID[sh.EmployeeID]
		if !known {
			eh = &EmployeeHours{EmployeeID: sh.EmployeeID, Name: sh.EmployeeID}
			byID[sh.EmployeeID] = eh
		}
		eh.Shifts++
		eh.Hours += hours
		if d, ok := deps[eh.Department]; ok {
			d.Hours += hours
		}
	}

	for _, v := range env.Vacations {
		if v.Status == schema.VacationPending {
			s.PendingVacations++
		}
	}

	for _, eh := range byID {
		eh.Hours = round(eh.Hours)
		s.Employees = append(s.Employees, *eh)
	}
	slices.SortFunc(s.Employees, func(a, b EmployeeHours) int {
		return cmp.Or(cmp.Compare(b.Hours, a.Hours), cmp.Compare(a.Name, b.Name))
	})
	for _, d := range schema.Departments {
		dh := *deps[d]
		dh.Hours = round(dh.Hours)
		s.Departments = append(s.Departments, dh)
	}
	for day := time.Monday; ; day = (day + 1) % 7 {
		s.Weekdays = append(s.Weekdays, WeekdayHours{Weekday: day, Hours: round(weekdays[day])})
		if day == time.Sunday {
			break
		}
	}
	s.TotalHours = round(s.TotalHours)
	return s
}

// Duration returns when a closed shift started and how many hours it lasted.
func Duration(sh schema.ShiftRecord) (time.Time, float64, bool) {
	if sh.ExitTime == nil {
		return time.Time{}, 0, false
	}
	day, err := time.Parse(schema.DateLayout, sh.Date)
	if err != nil {
		return time.Time{}, 0, false
	}
	entry, err := schema.ParseClock(sh.EntryTime)
	if err != nil {
		return time.Time{}, 0, false
	}
	exit, err := schema.ParseClock(*sh.ExitTime)
	if err != nil {
		return time.Time{}, 0, false
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), entry.Hour(), entry.Minute(), 0, 0, time.UTC)
	end := time.Date(day.Year(), day.Month(), day.Day(), exit.Hour(), exit.Minute(), 0, 0, time.UTC)
	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end.Sub(start).Hours(), true
}

func round(h float64) float64 {
	return math.Round(h*100) / 100
}
