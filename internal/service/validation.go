package service

import (
	"errors"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput checks struct tags and reports failures as VALIDATION_FAILED
// with one detail entry per offending field.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
		return apperrors.NewValidationError("invalid input", details)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}

// validateValue checks a single value against a validator tag expression.
func validateValue(field string, value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		return apperrors.NewValidationError("invalid "+field, map[string]any{field: value, "rule": tag})
	}
	return nil
}
