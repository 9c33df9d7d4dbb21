package store

import "context"

// Action is the unit of change fed to a reducer.
type Action struct {
	Type    string
	Payload any
}

// ActionInit is dispatched once at construction to compute the initial state.
const ActionInit = "@@storekit/INIT"

// Reducer returns the next state for an action. It must not mutate state.
type Reducer func(state any, action Action) any

// Selector derives a value from state.
type Selector func(state any, args ...any) any

// ActionCreator builds an action from its arguments.
type ActionCreator func(args ...any) Action

// Resolver populates state on behalf of the selector with the same name.
//
// Fulfill runs on its own goroutine the first time the selector is called
// with a given argument tuple; it usually fetches data and dispatches an
// action carrying it. A nil error marks the tuple finished. IsFulfilled, when
// set, is consulted first: a true result marks the tuple finished without
// calling Fulfill.
type Resolver struct {
	Fulfill     func(ctx context.Context, s *Store, args ...any) error
	IsFulfilled func(state any, args ...any) bool
}

// Config describes a store. Reducer is required.
type Config struct {
	Reducer      Reducer
	InitialState any
	Actions      map[string]ActionCreator
	Selectors    map[string]Selector
	Resolvers    map[string]Resolver

	// MaxConcurrentResolvers bounds how many resolvers of this store run at
	// once. Zero means unbounded.
	MaxConcurrentResolvers int64

	// Persist opts the store into the persistence plugin. Decode, when set,
	// converts stored bytes back into state; the default is JSON.
	Persist bool
	Decode  func(data []byte) (any, error)
}
