package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var requestValidator = newRequestValidator()

// newRequestValidator reports fields by their JSON names.
func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func decodeAndValidate(body io.Reader, dst any) error {
	if err := decodeJSON(body, dst); err != nil {
		return err
	}
	return validateStruct(dst)
}

// decodeJSON reads exactly one JSON value with no unknown fields.
func decodeJSON(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// validateStruct turns the first validator failure into a client message.
func validateStruct(dst any) error {
	err := requestValidator.Struct(dst)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		first := validationErrors[0]
		field := lowerFirst(first.Field())
		switch first.Tag() {
		case "required":
			return fmt.Errorf("%s is required", field)
		case "email":
			return fmt.Errorf("invalid email format")
		case "min":
			return fmt.Errorf("%s must be at least %s", field, lengthOrValue(first))
		case "max":
			return fmt.Errorf("%s must be at most %s", field, lengthOrValue(first))
		case "len":
			return fmt.Errorf("invalid %s length", field)
		case "numeric":
			return fmt.Errorf("%s must contain only digits", field)
		case "gt", "gte":
			return fmt.Errorf("%s is out of range", field)
		case "oneof":
			return fmt.Errorf("%s must be one of: %s", field, first.Param())
		default:
			return fmt.Errorf("invalid %s", field)
		}
	}

	return fmt.Errorf("invalid request payload")
}

func lengthOrValue(fe validator.FieldError) string {
	if fe.Kind().String() == "string" {
		return fe.Param() + " characters"
	}
	return fe.Param()
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
