package store

import (
	"fmt"
	"maps"
	"slices"
)

// SelectorFunc is a selector bound to a store's live state.
type SelectorFunc func(args ...any) any

// ActionFunc is an action creator bound to a store's dispatch. It returns the
// dispatched action.
type ActionFunc func(args ...any) Action

// Selectors is the fixed set of bound selectors a store exposes. A nil
// *Selectors stands for "no such store": every method is nil-safe.
type Selectors struct {
	names    []string
	funcs    map[string]SelectorFunc
	resolved map[string]bool
}

// NewSelectors builds a bundle. The set of names is fixed from here on.
func NewSelectors(funcs map[string]SelectorFunc) *Selectors {
	return &Selectors{
		names: slices.Sorted(maps.Keys(funcs)),
		funcs: maps.Clone(funcs),
	}
}

// HasResolver reports whether the named selector is backed by a resolver.
// Bundles built with NewSelectors have none.
func (s *Selectors) HasResolver(name string) bool {
	if s == nil {
		return false
	}
	return s.resolved[name]
}

// Names returns the selector names in sorted order.
func (s *Selectors) Names() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.names)
}

// Lookup returns the named selector.
func (s *Selectors) Lookup(name string) (SelectorFunc, bool) {
	if s == nil {
		return nil, false
	}
	fn, ok := s.funcs[name]
	return fn, ok
}

// Call invokes the named selector.
func (s *Selectors) Call(name string, args ...any) (any, error) {
	fn, ok := s.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSelector, name)
	}
	return fn(args...), nil
}

// Actions is the fixed set of bound action creators a store exposes. A nil
// *Actions stands for "no such store": every method is nil-safe.
type Actions struct {
	names []string
	funcs map[string]ActionFunc
}

// NewActions builds a bundle. The set of names is fixed from here on.
func NewActions(funcs map[string]ActionFunc) *Actions {
	return &Actions{
		names: slices.Sorted(maps.Keys(funcs)),
		funcs: maps.Clone(funcs),
	}
}

// Names returns the action names in sorted order.
func (a *Actions) Names() []string {
	if a == nil {
		return nil
	}
	return slices.Clone(a.names)
}

// Lookup returns the named action.
func (a *Actions) Lookup(name string) (ActionFunc, bool) {
	if a == nil {
		return nil, false
	}
	fn, ok := a.funcs[name]
	return fn, ok
}

// Call dispatches the named action and returns it.
func (a *Actions) Call(name string, args ...any) (Action, error) {
	fn, ok := a.Lookup(name)
	if !ok {
		return Action{}, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return fn(args...), nil
}
