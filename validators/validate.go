// Package validators holds the struct validator shared by the request
// validator middlewares.
package validators

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// certNumberPattern matches the numbers the public verify page accepts and
// keeps them usable as a single URL path segment.
var certNumberPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// CertificateNumber reports whether number may be issued.
func CertificateNumber(number string) bool {
	return certNumberPattern.MatchString(number)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("certnumber", func(fl validator.FieldLevel) bool {
		return CertificateNumber(fl.Field().String())
	})
	return v
}

// Struct validates req and returns a field -> message map, empty when valid.
func Struct(req interface{}) map[string]string {
	errs := make(map[string]string)
	err := validate.Struct(req)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs["request"] = err.Error()
		return errs
	}
	for _, fe := range fieldErrs {
		errs[fe.Field()] = message(fe)
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required!", fe.Field())
	case "email":
		return "Invalid email!"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long!", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long!", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL!", fe.Field())
	case "certnumber":
		return fmt.Sprintf("%s may only contain letters, digits, dots, underscores and hyphens, starting with a letter or digit!", fe.Field())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range!", fe.Field())
	}
	return fmt.Sprintf("%s is invalid!", fe.Field())
}
