package validation

import (
	"fmt"
	"reflect"
	"strings"

	"email-router/internal/common/errors"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// RouterValidator provides unified validation using go-playground/validator
type RouterValidator struct {
	validator *validator.Validate
}

// NewRouterValidator creates a new validator instance with the custom
// rules registered
func NewRouterValidator() *RouterValidator {
	v := validator.New()

	registerRouterValidators(v)

	// Use JSON tag names instead of struct field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &RouterValidator{
		validator: v,
	}
}

// ValidateStruct validates a struct using struct tags
func (rv *RouterValidator) ValidateStruct(s interface{}) error {
	if err := rv.validator.Struct(s); err != nil {
		return rv.formatValidationErrors(err)
	}
	return nil
}

// ValidateVar validates a single variable with validation rules
func (rv *RouterValidator) ValidateVar(field interface{}, tag string) error {
	if err := rv.validator.Var(field, tag); err != nil {
		return rv.formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors converts go-playground/validator errors to internal errors
func (rv *RouterValidator) formatValidationErrors(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ValidationError(err.Error())
	}

	messages := make([]string, len(validationErrs))
	for i, fieldError := range validationErrs {
		messages[i] = rv.formatFieldError(fieldError)
	}

	return errors.ValidationError(strings.Join(messages, "; "))
}

// formatFieldError formats go-playground/validator field errors into readable messages
func (rv *RouterValidator) formatFieldError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", err.Field())
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("field '%s' must be %s or greater", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", err.Field(), err.Param())
	case "cidr":
		return fmt.Sprintf("field '%s' must be a CIDR network", err.Field())
	case "cron_expression":
		return fmt.Sprintf("field '%s' must be a valid cron expression", err.Field())
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", err.Field(), err.Tag())
	}
}

// registerRouterValidators registers custom validation functions
func registerRouterValidators(v *validator.Validate) {
	// Cron schedule validation, standard five field specs and descriptors
	v.RegisterValidation("cron_expression", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
}

// Global validator instance for convenience
var globalValidator = NewRouterValidator()

// ValidateStruct validates a struct using the global validator instance
func ValidateStruct(s interface{}) error {
	return globalValidator.ValidateStruct(s)
}

// ValidateVar validates a variable using the global validator instance
func ValidateVar(field interface{}, tag string) error {
	return globalValidator.ValidateVar(field, tag)
}

// Passes reports whether field satisfies the validation tag, discarding
// the message detail
func Passes(field interface{}, tag string) bool {
	return globalValidator.validator.Var(field, tag) == nil
}

// Collector accumulates human-readable validation failures so one pass
// over a document reports every problem instead of stopping at the first.
type Collector struct {
	failures []string
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

// Require records msg when value fails the go-playground validation tag
func (c *Collector) Require(value interface{}, tag, msg string) *Collector {
	if !Passes(value, tag) {
		c.failures = append(c.failures, msg)
	}
	return c
}

// Check records msg when ok is false, so bespoke checks share the report
// with tag-driven ones
func (c *Collector) Check(ok bool, msg string) *Collector {
	if !ok {
		c.failures = append(c.failures, msg)
	}
	return c
}

// Checkf records a formatted message when ok is false
func (c *Collector) Checkf(ok bool, format string, args ...interface{}) *Collector {
	if !ok {
		c.failures = append(c.failures, fmt.Sprintf(format, args...))
	}
	return c
}

// HasErrors returns true if any check failed
func (c *Collector) HasErrors() bool {
	return len(c.failures) > 0
}

// Errors returns the accumulated failure messages in record order
func (c *Collector) Errors() []string {
	out := make([]string, len(c.failures))
	copy(out, c.failures)
	return out
}

// Err returns nil when every check passed, otherwise a single validation
// error combining all failure messages
func (c *Collector) Err() error {
	if !c.HasErrors() {
		return nil
	}
	return errors.ValidationError(strings.Join(c.failures, "; "))
}
