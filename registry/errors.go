package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry operations.
var (
	ErrStoreNotFound  = errors.New("store not found")
	ErrEmptyName      = errors.New("plugin name is empty")
	ErrPluginExists   = errors.New("plugin already registered")
	ErrPluginNotFound = errors.New("plugin not found")
)

func storeNotFound(key string) error {
	return fmt.Errorf("%w: %s", ErrStoreNotFound, key)
}
