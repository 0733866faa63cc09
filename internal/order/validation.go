package order

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"ms-registration/internal/errs"
	"ms-registration/internal/models"
)

// Indian mobile numbers: ten digits starting 6-9, after stripping an
// optional +91 / 91 / leading-zero prefix.
var indianMobile = regexp.MustCompile(`^[6-9][0-9]{9}$`)

func normalizePhone(phone string) string {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	cleaned = strings.TrimPrefix(cleaned, "+91")
	if len(cleaned) == 12 && strings.HasPrefix(cleaned, "91") {
		cleaned = cleaned[2:]
	}
	return strings.TrimPrefix(cleaned, "0")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Errors here are only possible for empty tags or duplicate registration.
	_ = v.RegisterValidation("inmobile", func(fl validator.FieldLevel) bool {
		return indianMobile.MatchString(normalizePhone(fl.Field().String()))
	})
	return v
}

var fieldMessages = map[string]string{
	"FullName":   "full name must be at least 2 characters",
	"Email":      "email address is not valid",
	"Phone":      "phone must be a valid Indian mobile number",
	"Speciality": "speciality is required",
	"Hospital":   "hospital/affiliation is required",
	"City":       "city is required",
}

var fieldNames = map[string]string{
	"FullName":   "full_name",
	"Email":      "email",
	"Phone":      "phone",
	"Speciality": "speciality",
	"Hospital":   "hospital",
	"City":       "city",
}

// validateCustomer checks every field and reports all failures at once.
func validateCustomer(v *validator.Validate, customer models.CustomerDetails) error {
	err := v.Struct(customer)
	if err == nil {
		return nil
	}

	invalid, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make(map[string]string, len(invalid))
	for _, fieldErr := range invalid {
		name := fieldNames[fieldErr.StructField()]
		if name == "" {
			name = strings.ToLower(fieldErr.StructField())
		}
		message := fieldMessages[fieldErr.StructField()]
		if message == "" {
			message = "invalid value"
		}
		fields[name] = message
	}
	return errs.NewValidationError(fields)
}

// canonicalCurrency enforces the currency allow-list. The match is
// case-insensitive and the returned code carries the allow-list casing, which
// is what gets persisted and sent to the gateway.
func canonicalCurrency(allowed []string, currency string) (string, error) {
	for _, c := range allowed {
		if strings.EqualFold(c, currency) {
			return c, nil
		}
	}
	return "", errs.NewValidationError(map[string]string{
		"currency": "currency is not supported",
	})
}
