// Package validate checks request DTOs against their `validate` tags.
package validate

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/member-auth/internal/domain"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the request body.
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = val.RegisterValidation("birthdate", birthDate)
	return val
}

// birthDate accepts YYYY-MM-DD dates from year 1900 up to today.
func birthDate(fl validator.FieldLevel) bool {
	d, err := time.Parse(domain.DateLayout, fl.Field().String())
	if err != nil {
		return false
	}
	return d.Year() >= 1900 && !d.After(time.Now())
}

// Struct validates s using its validate tags.
// Failures wrap domain.ErrBadRequest with one entry per failed field.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), domain.ErrBadRequest)
}
