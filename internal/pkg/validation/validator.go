package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"brainsync-client/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateRequest checks v against its `validate` tags and returns an apperr validation
// error listing every failed field.
func ValidateRequest(v interface{}) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.NewValidation(err.Error(), nil)
	}

	details := make(map[string]any, len(fieldErrs))
	names := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		details[fe.Field()] = rule
		names = append(names, fe.Field())
	}

	return apperr.NewValidation("invalid fields: "+strings.Join(names, ", "), details)
}
