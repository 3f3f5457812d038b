package api

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"

	"github.com/krishisahay/krishisahay-go/internal/errors"
)

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{validate: validator.New()}
}

// Validate checks the struct tags of i. Failures are validation errors
// naming the offending JSON fields.
func (v *requestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}

	var missing, invalid []string
	for _, fe := range verrs {
		name := jsonName(fe.Field())
		if fe.Tag() == "required" {
			missing = append(missing, name)
		} else {
			invalid = append(invalid, fmt.Sprintf("%s (%s)", name, fe.Tag()))
		}
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}
	return errors.ValidationError(strings.Join(parts, "; "))
}

// jsonName converts a Go field name such as EquipmentType to equipment_type.
func jsonName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// asValidation passes validation errors through and reports anything else
// (malformed bodies, wrong content types) as an invalid request body.
func asValidation(err error) error {
	if errors.IsCategory(err, errors.CategoryValidation) {
		return err
	}
	return errors.ValidationError("invalid request body")
}
