package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/aura/internal/utils"
)

// Validator plugs go-playground/validator into echo's c.Validate.
type Validator struct {
	v *validator.Validate
}

// NewValidator reports field names by their JSON tag and adds the "otp"
// tag for six-digit verification codes.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return utils.IsOTPFormat(strings.TrimSpace(fl.Field().String()))
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// ValidationMessage turns the first field error into a client message.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	e := verrs[0]
	field := e.Field()
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return field + " must be at least " + e.Param() + " characters"
	case "max":
		return field + " must be at most " + e.Param() + " characters"
	case "len":
		return field + " must be exactly " + e.Param() + " characters"
	case "numeric":
		return field + " must contain only digits"
	case "alphanum":
		return field + " must contain only letters and digits"
	case "otp":
		return field + " must be 6 digits"
	case "gte", "lte":
		return field + " is out of range"
	default:
		return field + " is invalid"
	}
}
