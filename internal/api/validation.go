package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/clinicflow-scheduling/internal/clock"
)

var errInvalidBody = errors.New("could not parse JSON")

type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := clock.ParseDate(value)
		return err == nil
	})

	v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return clock.ValidHHMM(value)
	})

	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{v: v}
}

func (v *Validator) Struct(s interface{}) error {
	return v.v.Struct(s)
}

// describe turns validation errors into one readable line.
func describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}

	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "date":
			parts = append(parts, fmt.Sprintf("%s must be YYYY-MM-DD", fe.Field()))
		case "hhmm":
			parts = append(parts, fmt.Sprintf("%s must be HH:MM", fe.Field()))
		case "uuid":
			parts = append(parts, fmt.Sprintf("%s must be a valid UUID", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// decodeAndValidate reads a JSON body into dst and validates it, writing a
// 400 and returning false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *Validator, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", errInvalidBody.Error())
		return false
	}
	if err := v.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", describe(err))
		return false
	}
	return true
}
