// Package validator checks request and guide input before anything is
// written. It wraps go-playground/validator with the enum rules of the
// data model.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/falconsupport/api/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// ErrInvalid is wrapped by every error Struct returns.
var ErrInvalid = errors.New("validation failed")

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()

	// Report fields by their json name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	// notblank ships outside the default tag set.
	v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterValidation("kind", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseKind(fl.Field().String())
		return ok
	})
	v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return model.Priority(fl.Field().String()).Valid()
	})
	v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return model.Status(fl.Field().String()).Valid()
	})
	v.RegisterValidation("bodyformat", func(fl validator.FieldLevel) bool {
		return model.BodyFormat(fl.Field().String()).Valid()
	})

	return &Validator{v: v}
}

// Struct validates s and flattens field errors into one message such as
// "validation failed: title is required, priority is invalid".
func (v *Validator) Struct(s interface{}) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, ", "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "email":
		return fe.Field() + " must be an email address"
	default:
		return fe.Field() + " is invalid"
	}
}
