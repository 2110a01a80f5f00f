package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"leadloop/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// pipeline_stage restricts a field to the known lead pipeline stages.
	_ = v.RegisterValidation("pipeline_stage", func(fl validator.FieldLevel) bool {
		return models.ValidLeadStatus(fl.Field().String())
	})

	return v
}

// ValidateStruct validates a request payload and folds all field errors into
// a single readable error.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, describeFieldError(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return field + " is below the minimum of " + fe.Param()
	case "max":
		return field + " exceeds the maximum of " + fe.Param()
	case "len":
		return field + " must have length " + fe.Param()
	case "pipeline_stage":
		return field + " is not a known pipeline stage"
	default:
		return field + " failed " + fe.Tag() + " validation"
	}
}
