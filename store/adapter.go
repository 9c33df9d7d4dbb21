package store

import (
	"reflect"

	"github.com/tailored-agentic-units/storekit/listener"
)

// Adapter is the uniform capability set a registry needs from a store.
// *Store implements it; AdapterFuncs lets callers supply one from plain
// functions.
type Adapter interface {
	Selectors() *Selectors
	Actions() *Actions
	Subscribe(fn listener.Listener) listener.Unsubscribe
}

// AdapterFuncs implements Adapter with function fields. All three fields are
// required; ValidateAdapter reports the first one missing.
type AdapterFuncs struct {
	GetSelectors func() *Selectors
	GetActions   func() *Actions
	OnChange     func(fn listener.Listener) listener.Unsubscribe
}

func (a AdapterFuncs) Selectors() *Selectors { return a.GetSelectors() }

func (a AdapterFuncs) Actions() *Actions { return a.GetActions() }

func (a AdapterFuncs) Subscribe(fn listener.Listener) listener.Unsubscribe {
	return a.OnChange(fn)
}

// Validate reports the first missing function as a ConfigurationError.
func (a AdapterFuncs) Validate() error {
	switch {
	case a.GetSelectors == nil:
		return &ConfigurationError{Missing: "GetSelectors"}
	case a.GetActions == nil:
		return &ConfigurationError{Missing: "GetActions"}
	case a.OnChange == nil:
		return &ConfigurationError{Missing: "Subscribe"}
	}
	return nil
}

// ValidateAdapter checks an adapter before registration. Nil adapters
// (including typed nil pointers) are rejected, and adapters that implement
// Validate() error are asked to check themselves.
func ValidateAdapter(a Adapter) error {
	if a == nil {
		return &ConfigurationError{Missing: "adapter"}
	}
	if v := reflect.ValueOf(a); v.Kind() == reflect.Pointer && v.IsNil() {
		return &ConfigurationError{Missing: "adapter"}
	}
	if v, ok := a.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}
