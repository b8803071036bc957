package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
)

const (
	MaxNameLength       = 128
	MaxMacAddressLength = 64
)

var inputValidate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct tag validation and reports the first failing
// field as a ValidationFailure.
func validateInput(v any) error {
	err := inputValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apierr.Validation(err)
	}
	fe := verrs[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return apierr.Validation(fmt.Errorf("%s is required", field))
	case "max":
		return apierr.Validation(fmt.Errorf("%s must be at most %s characters", field, fe.Param()))
	case "gt":
		return apierr.Validation(fmt.Errorf("%s must be greater than %s", field, fe.Param()))
	case "latitude", "longitude":
		return apierr.Validation(fmt.Errorf("%s is not a valid %s", field, fe.Tag()))
	default:
		return apierr.Validation(fmt.Errorf("%s failed %q", field, fe.Tag()))
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
