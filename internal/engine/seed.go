package engine

import "github.com/ilpi-dev/ilpi-store/pkg/schema"

// SeedData is the fixed content of a freshly created store.
func SeedData() schema.Envelope {
	return schema.Envelope{
		Employees: []schema.Employee{
			{
				ID:            "1",
				FirstName:     "Juan",
				LastName:      "García",
				Email:         "juan@ilpi.es",
				Phone:         "600112233",
				DNI:           "12345678X",
				Address:       "Calle Mayor 12, Villa Joyosa",
				BirthDate:     "1985-05-20",
				MaritalStatus: "Casado/a",
				Gender:        "Masculino",
				Role:          schema.RoleAdmin,
				Department:    schema.DepartmentManagement,
				Status:        schema.StatusActive,
				HireDate:      "2022-01-15",
				ProfileImage:  "https://picsum.photos/seed/juan/100",
			},
		},
		Shifts:    []schema.ShiftRecord{},
		Vacations: []schema.VacationRequest{},
	}
}
