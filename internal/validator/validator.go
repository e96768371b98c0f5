package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// configKeyPattern matches environment-style key names: an uppercase
// letter followed by uppercase letters, digits or underscores
var configKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Validator represents a validator instance
type Validator struct {
	validate *validator.Validate
}

// New creates a new validator instance
func New() *Validator {
	once.Do(func() {
		validate = validator.New()

		// Register custom validation functions
		_ = validate.RegisterValidation("configkey", validateConfigKey)
		_ = validate.RegisterValidation("exportformat", validateExportFormat)

		// Use JSON tag names in error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})

	return &Validator{
		validate: validate,
	}
}

// Struct validates a struct
func (v *Validator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return fmt.Errorf("invalid validation error: %w", err)
		}

		var errMsgs []string
		for _, err := range err.(validator.ValidationErrors) {
			errMsgs = append(errMsgs, formatError(err))
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errMsgs, "; "))
	}
	return nil
}

// Var validates a single variable
func (v *Validator) Var(field any, tag string) error {
	return v.validate.Var(field, tag)
}

// ConfigKey validates a configuration key name
func (v *Validator) ConfigKey(key string) error {
	if err := v.validate.Var(key, "required,configkey"); err != nil {
		return fmt.Errorf("invalid config key: %s", key)
	}
	return nil
}

// formatError formats a validation error
func formatError(err validator.FieldError) string {
	field := err.Field()
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, err.Param())
	case "configkey":
		return fmt.Sprintf("%s must be an uppercase key name", field)
	case "exportformat":
		return fmt.Sprintf("%s must be json or csv", field)
	default:
		return fmt.Sprintf("%s failed on tag %s", field, err.Tag())
	}
}

func validateConfigKey(fl validator.FieldLevel) bool {
	return configKeyPattern.MatchString(fl.Field().String())
}

func validateExportFormat(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "json", "csv":
		return true
	}
	return false
}
