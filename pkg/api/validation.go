package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/eolymp/direct-printing/pkg/printing"
)

var setupValidator sync.Once

// SetupValidator registers the "orientation" tag and reports JSON field names in validation errors.
func SetupValidator() {
	setupValidator.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("orientation", func(fl validator.FieldLevel) bool {
			_, ok := printing.ParseOrientation(fl.Field().String())
			return ok
		})
	})
}

// bindError turns a binding failure into the HTTP status and the message shown to the client.
func bindError(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "Request body too large"
	}

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return http.StatusBadRequest, "Invalid request body"
	}

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fieldMessage(f))
	}

	return http.StatusBadRequest, "Invalid request: " + strings.Join(msgs, "; ")
}

func fieldMessage(f validator.FieldError) string {
	// Namespace starts with the struct name: printRequest.settings.printer
	_, field, _ := strings.Cut(f.Namespace(), ".")

	switch f.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must not be empty"
	case "orientation":
		return fmt.Sprintf("%s %q is not one of portrait, landscape, reverse_portrait, reverse_landscape", field, f.Value())
	default:
		return field + " is invalid"
	}
}
