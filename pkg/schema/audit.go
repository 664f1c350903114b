package schema

import "fmt"

// Audit reports data that is accepted but probably unintended: employees
// sharing an email or DNI, and shifts or vacations pointing at an employee
// that no longer exists. Nothing here is rejected by the store.
func Audit(env Envelope) []string {
	var warnings []string

	known := make(map[string]bool, len(env.Employees))
	emails := make(map[string]string)
	dnis := make(map[string]string)
	for _, e := range env.Employees {
		known[e.ID] = true
		if e.Email != "" {
			if other, ok := emails[e.Email]; ok {
				warnings = append(warnings, fmt.Sprintf("employees %s and %s share email %s", other, e.ID, e.Email))
			} else {
				emails[e.Email] = e.ID
			}
		}
		if e.DNI != "" {
			if other, ok := dnis[e.DNI]; ok {
				warnings = append(warnings, fmt.Sprintf("employees %s and %s share DNI %s", other, e.ID, e.DNI))
			} else {
				dnis[e.DNI] = e.ID
			}
		}
	}

	for _, s := range env.Shifts {
		if !known[s.EmployeeID] {
			warnings = append(warnings, fmt.Sprintf("shift %s references missing employee %s", s.ID, s.EmployeeID))
		}
	}
	for _, v := range env.Vacations {
		if !known[v.EmployeeID] {
			warnings = append(warnings, fmt.Sprintf("vacation %s references missing employee %s", v.ID, v.EmployeeID))
		}
	}
	return warnings
}
