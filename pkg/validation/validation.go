// Package validation runs struct-tag presence and shape checks on decoded
// request bodies, reporting fields by their JSON names.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "folio/pkg/domain-errors"
)

// KindRequired is reported for a field that is absent or blank.
const KindRequired = "REQUIRED_FIELD"

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate checks req and returns a VALIDATION_ERROR listing every failing
// field, or nil.
func Validate(req any) error {
	err := defaultValidator.Struct(req)
	if err == nil {
		return nil
	}
	details := Details(err)
	if len(details) == 0 {
		return dErrors.Wrap(err, dErrors.CodeInternal, "validate request")
	}
	return dErrors.Invalid(details[0].Message, details)
}

// Details converts validator output into per-field details in struct order.
func Details(err error) []dErrors.Detail {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}
	details := make([]dErrors.Detail, 0, len(validationErrs))
	for _, fe := range validationErrs {
		details = append(details, dErrors.Detail{
			Field:   fe.Field(),
			Kind:    kindFor(fe.ActualTag()),
			Message: ErrorMessage(fe),
		})
	}
	return details
}

func kindFor(tag string) string {
	switch tag {
	case "required", "notblank":
		return KindRequired
	case "max":
		return "TOO_LONG"
	case "min":
		return "TOO_SHORT"
	default:
		return "INVALID"
	}
}

// ErrorMessage renders a single field failure for clients.
func ErrorMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
