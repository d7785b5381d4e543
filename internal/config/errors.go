package config

import (
	"errors"
	"fmt"
)

// ErrRequired marks a missing mandatory setting.
var ErrRequired = errors.New("value is required")

// ConfigError describes one invalid setting. Configuration errors are fatal
// at startup.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
