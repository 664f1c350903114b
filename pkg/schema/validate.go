package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failed check on an entity.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors collects every failed check of a payload.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	var msgs []string
	for _, err := range v {
		msgs = append(msgs, err.Field+": "+err.Message)
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) ToMap() map[string]string {
	result := make(map[string]string)
	for _, err := range v {
		result[err.Field] = err.Message
	}
	return result
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		enum := func(valid func(string) bool) validator.Func {
			return func(fl validator.FieldLevel) bool { return valid(fl.Field().String()) }
		}
		_ = validate.RegisterValidation("role", enum(func(s string) bool { return Role(s).Valid() }))
		_ = validate.RegisterValidation("department", enum(func(s string) bool { return Department(s).Valid() }))
		_ = validate.RegisterValidation("staffstatus", enum(func(s string) bool { return StaffStatus(s).Valid() }))
		_ = validate.RegisterValidation("vacationstatus", enum(func(s string) bool { return VacationStatus(s).Valid() }))
		_ = validate.RegisterValidation("shifttype", enum(func(s string) bool { return ShiftType(s).Valid() }))
		_ = validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			_, err := ParseClock(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

func check(prefix string, v any, out *ValidationErrors) {
	err := validatorInstance().Struct(v)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		*out = append(*out, FieldError{Field: prefix, Message: err.Error()})
		return
	}
	for _, fe := range fieldErrs {
		// drop the struct name, keep the nested path
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		*out = append(*out, FieldError{Field: prefix + "." + path, Message: message(fe)})
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "datetime":
		return fmt.Sprintf("must match layout %s", fe.Param())
	case "clock":
		return "must be a time of day such as 14:05 or 02:05 PM"
	case "min", "max":
		return fmt.Sprintf("out of range (%s %s)", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value()))
	}
}

func checkUnique(collection string, ids []string, out *ValidationErrors) {
	seen := make(map[string]int, len(ids))
	for i, id := range ids {
		if id == "" {
			continue
		}
		if first, ok := seen[id]; ok {
			*out = append(*out, FieldError{
				Field:   fmt.Sprintf("%s[%d].id", collection, i),
				Message: fmt.Sprintf("duplicates %s[%d]", collection, first),
			})
			continue
		}
		seen[id] = i
	}
}

// ValidateEmployees checks every employee and that ids are unique.
func ValidateEmployees(items []Employee) error {
	var errs ValidationErrors
	ids := make([]string, len(items))
	for i := range items {
		check(fmt.Sprintf("employees[%d]", i), &items[i], &errs)
		ids[i] = items[i].ID
	}
	checkUnique("employees", ids, &errs)
	return result(errs)
}

// ValidateShifts checks every shift and that ids are unique.
func ValidateShifts(items []ShiftRecord) error {
	var errs ValidationErrors
	ids := make([]string, len(items))
	for i := range items {
		check(fmt.Sprintf("shifts[%d]", i), &items[i], &errs)
		ids[i] = items[i].ID
	}
	checkUnique("shifts", ids, &errs)
	return result(errs)
}

// ValidateVacations checks every request, its date order and id uniqueness.
func ValidateVacations(items []VacationRequest) error {
	var errs ValidationErrors
	ids := make([]string, len(items))
	for i, v := range items {
		prefix := fmt.Sprintf("vacations[%d]", i)
		before := len(errs)
		check(prefix, &items[i], &errs)
		// ISO dates compare lexically
		if len(errs) == before && v.EndDate < v.StartDate {
			errs = append(errs, FieldError{Field: prefix + ".endDate", Message: "is before startDate"})
		}
		ids[i] = v.ID
	}
	checkUnique("vacations", ids, &errs)
	return result(errs)
}

// ValidatePatch validates every collection present in p.
func ValidatePatch(p Patch) error {
	var errs ValidationErrors
	collect := func(err error) {
		var ve ValidationErrors
		if errors.As(err, &ve) {
			errs = append(errs, ve...)
		}
	}
	if p.Employees != nil {
		collect(ValidateEmployees(*p.Employees))
	}
	if p.Shifts != nil {
		collect(ValidateShifts(*p.Shifts))
	}
	if p.Vacations != nil {
		collect(ValidateVacations(*p.Vacations))
	}
	return result(errs)
}

// ValidateTeam checks a team record.
func ValidateTeam(t Team) error {
	var errs ValidationErrors
	check("team", &t, &errs)
	return result(errs)
}

// ValidateAbsence checks an absence record.
func ValidateAbsence(a AbsenceRecord) error {
	var errs ValidationErrors
	check("absence", &a, &errs)
	return result(errs)
}

func result(errs ValidationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
