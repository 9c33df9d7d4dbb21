package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for store construction and bundle lookups.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrUnknownSelector = errors.New("unknown selector")
	ErrUnknownAction   = errors.New("unknown action")
)

// ConfigurationError reports a store or adapter that cannot be registered.
// It matches ErrConfiguration with errors.Is.
type ConfigurationError struct {
	Namespace string
	Missing   string
}

func (e *ConfigurationError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("configuration error: missing %s", e.Missing)
	}
	return fmt.Sprintf("configuration error: store %q: missing %s", e.Namespace, e.Missing)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
