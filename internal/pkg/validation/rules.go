package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Natural-key and contact patterns used across registration inputs.
var (
	// EmailPattern is the email format accepted for new identities
	EmailPattern = `^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`

	// StudentNoPattern matches school-issued student codes, e.g. STU-2026-0042
	StudentNoPattern = `^[A-Z]{2,4}-\d{4}-\d{3,6}$`

	// EmployeeNoPattern matches staff payroll codes, e.g. EMP-0917
	EmployeeNoPattern = `^[A-Z]{2,4}-\d{3,6}$`

	// NationalIDPattern matches guardian national identification numbers
	NationalIDPattern = `^[A-Z0-9]{8,20}$`
)

// CompiledPatterns caches compiled regex patterns
var CompiledPatterns = struct {
	Email      *regexp.Regexp
	StudentNo  *regexp.Regexp
	EmployeeNo *regexp.Regexp
	NationalID *regexp.Regexp
}{
	Email:      regexp.MustCompile(EmailPattern),
	StudentNo:  regexp.MustCompile(StudentNoPattern),
	EmployeeNo: regexp.MustCompile(EmployeeNoPattern),
	NationalID: regexp.MustCompile(NationalIDPattern),
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Struct-tag rules for the key formats above.
	_ = validate.RegisterValidation("student_no", func(fl validator.FieldLevel) bool {
		return CompiledPatterns.StudentNo.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("employee_no", func(fl validator.FieldLevel) bool {
		return CompiledPatterns.EmployeeNo.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("national_id", func(fl validator.FieldLevel) bool {
		return CompiledPatterns.NationalID.MatchString(fl.Field().String())
	})
}

// Struct validates a struct's `validate` tags and returns the underlying
// validator error, or nil.
func Struct(s interface{}) error {
	return validate.Struct(s)
}

// FirstFieldError returns the lowercased name of the first failing field, or
// an empty string when err is not a validator error.
func FirstFieldError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ""
	}
	return strings.ToLower(verrs[0].Field())
}

// NormalizeEmail lowercases and trims an email for case-insensitive
// comparison and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
