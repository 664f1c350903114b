package report

import (
	"fmt"
	"io"

	"github.com/ilpi-dev/ilpi-store/pkg/schema"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the hours workbook.
const (
	SheetSummary     = "Resumen"
	SheetEmployees   = "Empleados"
	SheetDepartments = "Departamentos"
)

var weekdayNames = [...]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

// WriteXLSX renders s as a workbook with one sheet per breakdown.
func WriteXLSX(w io.Writer, s Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetEmployees, SheetDepartments} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	summary := [][]any{
		{"Indicador", "Valor"},
		{"Empleados", s.TotalEmployees},
		{"Turnos abiertos", s.OpenShifts},
		{"Turnos cerrados", s.ClosedShifts},
		{"Vacaciones pendientes", s.PendingVacations},
		{"Horas totales", s.TotalHours},
	}
	for _, status := range []schema.StaffStatus{schema.StatusActive, schema.StatusVacation, schema.StatusAbsent, schema.StatusInactive} {
		summary = append(summary, []any{"Estado: " + string(status), s.Headcount[status]})
	}
	summary = append(summary, []any{}, []any{"Día", "Horas"})
	for _, wd := range s.Weekdays {
		summary = append(summary, []any{weekdayNames[wd.Weekday], wd.Hours})
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}

	employees := [][]any{{"ID", "Nombre", "Departamento", "Turnos", "Horas"}}
	for _, e := range s.Employees {
		employees = append(employees, []any{e.EmployeeID, e.Name, string(e.Department), e.Shifts, e.Hours})
	}
	if err := writeRows(f, SheetEmployees, employees); err != nil {
		return err
	}

	departments := [][]any{{"Departamento", "Empleados", "Horas"}}
	for _, d := range s.Departments {
		departments = append(departments, []any{string(d.Department), d.Employees, d.Hours})
	}
	if err := writeRows(f, SheetDepartments, departments); err != nil {
		return err
	}

	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
