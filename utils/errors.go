package utils

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigValidationError is returned when a planner configuration is missing a field or holds an
// unusable value. Path locates the offending attribute.
type ConfigValidationError struct {
	Path string
	Err  error
}

func (e *ConfigValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("error validating planner config: %s", e.Err)
	}
	return fmt.Sprintf("error validating %q: %s", e.Path, e.Err)
}

// Unwrap returns the underlying validation failure.
func (e *ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns a config validation error occurring at a given path.
func NewConfigValidationError(path string, err error) error {
	return &ConfigValidationError{Path: path, Err: err}
}

// NewConfigValidationFieldRequiredError returns a config validation error for a field missing at a
// given path.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return NewConfigValidationError(path, errors.Errorf("%q is required", field))
}

// IsConfigurationError reports whether any error in err's chain is a ConfigValidationError.
func IsConfigurationError(err error) bool {
	var target *ConfigValidationError
	return errors.As(err, &target)
}
