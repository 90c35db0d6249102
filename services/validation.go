package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"yoma-api/errs"
)

// validate checks request structs. Initialized in init() with json field
// names and the custom rules below.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// validateStruct runs the tag rules and converts failures to an
// errs.ValidationError with one message per field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fieldMessage(fe))
	}
	return errs.Validations(messages)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("'%s' is required", fe.Field())
	case "email":
		return fmt.Sprintf("'%s' must be a valid e-mail address", fe.Field())
	case "url", "http_url":
		return fmt.Sprintf("'%s' must be a valid URL", fe.Field())
	case "max":
		return fmt.Sprintf("'%s' must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("'%s' must be at least %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("'%s' must be greater than or equal to %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("'%s' must be greater than %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("'%s' must be one of [%s]", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("'%s' must be %s characters long", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("'%s' is invalid (%s)", fe.Field(), fe.Tag())
}
