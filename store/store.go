// Package store implements the namespaced store that registries hold: a
// reducer-backed state container with bound selectors, bound actions, change
// notification, and lazily triggered resolvers.
//
//	s, err := store.New("counter", store.Config{
//	    Reducer: func(state any, a store.Action) any {
//	        n, _ := state.(int)
//	        if a.Type == "INC" {
//	            return n + 1
//	        }
//	        return n
//	    },
//	    Actions:   map[string]store.ActionCreator{"increment": func(...any) store.Action { return store.Action{Type: "INC"} }},
//	    Selectors: map[string]store.Selector{"getCount": func(state any, _ ...any) any { return state }},
//	})
//	s.Actions().Call("increment")
//	count, _ := s.Selectors().Call("getCount") // 1
//
// # Resolvers
//
// A selector with a resolver of the same name triggers that resolver the
// first time it is called with a given argument tuple. The tuple moves from
// NotStarted to InProgress synchronously, the resolver runs on its own
// goroutine, and a nil error moves the tuple to Finished through a
// finishResolution dispatch, which notifies subscribers. A resolver that
// fails or panics leaves its tuple InProgress; dispatching finishResolution
// or invalidateResolution is the only way out.
//
// Every store also carries the resolution metadata selectors and actions
// listed in MetadataSelectors and the ActionName* constants.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/tailored-agentic-units/storekit/listener"
	"github.com/tailored-agentic-units/storekit/observability"
	"golang.org/x/sync/semaphore"
)

// Option configures a Store.
type Option func(*Store)

// WithObserver sets the observer for store and bus events.
func WithObserver(o observability.Observer) Option {
	return func(s *Store) { s.observer = observability.OrNoOp(o) }
}

// WithContext sets the context resolvers run under. Cancelling it stops
// resolvers waiting for a concurrency slot.
func WithContext(ctx context.Context) Option {
	return func(s *Store) { s.ctx = ctx }
}

// Store is a reducer-backed state container. It implements Adapter and is
// safe for concurrent use.
type Store struct {
	name        string
	reducer     Reducer
	state       any
	resolutions *resolutionTable
	resolvers   map[string]Resolver
	selectors   *Selectors
	actions     *Actions
	bus         *listener.Bus
	sem         *semaphore.Weighted
	ctx         context.Context
	observer    observability.Observer
	mu          sync.RWMutex
}

// New builds a store from cfg. A missing reducer is a ConfigurationError.
func New(name string, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Reducer == nil {
		return nil, &ConfigurationError{Namespace: name, Missing: "reducer"}
	}

	s := &Store{
		name:        name,
		reducer:     cfg.Reducer,
		resolutions: newResolutionTable(),
		resolvers:   cfg.Resolvers,
		ctx:         context.Background(),
		observer:    observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.bus = listener.New(listener.WithObserver(s.observer), listener.WithSource("store."+name))
	if cfg.MaxConcurrentResolvers > 0 {
		s.sem = semaphore.NewWeighted(cfg.MaxConcurrentResolvers)
	}

	s.state = cfg.Reducer(cfg.InitialState, Action{Type: ActionInit})
	s.selectors = s.bindSelectors(cfg.Selectors)
	s.actions = s.bindActions(cfg.Actions)

	return s, nil
}

// Name returns the namespace the store was built for.
func (s *Store) Name() string {
	return s.name
}

// State returns the current state.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Status returns the resolution status of selector for args.
func (s *Store) Status(selector string, args ...any) Status {
	key := normalizeArgs(args)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolutions.status(selector, key)
}

func (s *Store) Selectors() *Selectors {
	return s.selectors
}

func (s *Store) Actions() *Actions {
	return s.actions
}

// Subscribe registers fn on the store's own bus.
func (s *Store) Subscribe(fn listener.Listener) listener.Unsubscribe {
	return s.bus.Subscribe(fn)
}

// Dispatch applies action and notifies subscribers. Metadata actions update
// the resolution table; every other action goes through the reducer.
func (s *Store) Dispatch(action Action) Action {
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if isMetadataAction(action.Type) {
			s.resolutions.apply(action)
			return
		}
		s.state = s.reducer(s.state, action)
	}()

	storeDispatchesTotal.WithLabelValues(s.name).Inc()
	observability.Emit(s.ctx, s.observer, EventDispatch, observability.LevelVerbose, "store", s.name,
		map[string]any{"action": action.Type})

	s.bus.Notify()
	return action
}

func (s *Store) bindSelectors(selectors map[string]Selector) *Selectors {
	bound := map[string]SelectorFunc{
		SelectorGetIsResolving: func(args ...any) any {
			switch s.metadataStatus(args) {
			case NotStarted:
				return nil
			case InProgress:
				return true
			default:
				return false
			}
		},
		SelectorHasStartedResolution: func(args ...any) any {
			return s.metadataStatus(args) != NotStarted
		},
		SelectorHasFinishedResolution: func(args ...any) any {
			return s.metadataStatus(args) == Finished
		},
		SelectorIsResolving: func(args ...any) any {
			return s.metadataStatus(args) == InProgress
		},
		SelectorGetCachedResolvers: func(...any) any {
			s.mu.RLock()
			defer s.mu.RUnlock()
			return s.resolutions.snapshot()
		},
	}

	resolved := make(map[string]bool, len(s.resolvers))
	for name, sel := range selectors {
		bound[name] = s.bindSelector(name, sel)
		if _, ok := s.resolvers[name]; ok {
			resolved[name] = true
		}
	}

	bundle := NewSelectors(bound)
	bundle.resolved = resolved
	return bundle
}

func (s *Store) metadataStatus(args []any) Status {
	selector, tuple := metadataArgs(args)
	return s.Status(selector, tuple...)
}

func (s *Store) bindSelector(name string, sel Selector) SelectorFunc {
	r, ok := s.resolvers[name]
	if !ok {
		return func(args ...any) any {
			return sel(s.State(), args...)
		}
	}
	return func(args ...any) any {
		s.fulfill(name, r, args)
		return sel(s.State(), args...)
	}
}

func (s *Store) bindActions(actions map[string]ActionCreator) *Actions {
	bound := map[string]ActionFunc{
		ActionNameStartResolution: func(args ...any) Action {
			selector, tuple := metadataArgs(args)
			return s.Dispatch(StartResolution(selector, tuple))
		},
		ActionNameFinishResolution: func(args ...any) Action {
			selector, tuple := metadataArgs(args)
			return s.Dispatch(FinishResolution(selector, tuple))
		},
		ActionNameInvalidateResolution: func(args ...any) Action {
			selector, tuple := metadataArgs(args)
			return s.Dispatch(InvalidateResolution(selector, tuple))
		},
		ActionNameInvalidateResolutionForStore: func(...any) Action {
			return s.Dispatch(InvalidateResolutionForStore())
		},
		ActionNameInvalidateResolutionForStoreSelector: func(args ...any) Action {
			selector, _ := metadataArgs(args)
			return s.Dispatch(InvalidateResolutionForStoreSelector(selector))
		},
	}

	for name, create := range actions {
		bound[name] = func(args ...any) Action {
			return s.Dispatch(create(args...))
		}
	}
	return NewActions(bound)
}

// fulfill starts the resolver for (name, args) unless the tuple has already
// been seen. The check and the transition happen under one lock, so
// concurrent callers trigger the resolver once.
func (s *Store) fulfill(name string, r Resolver, args []any) {
	key := normalizeArgs(args)

	s.mu.Lock()
	if s.resolutions.status(name, key) != NotStarted {
		s.mu.Unlock()
		return
	}
	fulfilled := r.Fulfill == nil || (r.IsFulfilled != nil && r.IsFulfilled(s.state, args...))
	if fulfilled {
		s.resolutions.set(name, key, Finished)
	} else {
		s.resolutions.set(name, key, InProgress)
	}
	s.mu.Unlock()

	if fulfilled {
		observability.Emit(s.ctx, s.observer, EventResolutionFulfilled, observability.LevelVerbose, "store", s.name,
			map[string]any{"selector": name})
		s.bus.Notify()
		return
	}

	resolutionsStartedTotal.WithLabelValues(s.name, name).Inc()
	observability.Emit(s.ctx, s.observer, EventResolutionStart, observability.LevelVerbose, "store", s.name,
		map[string]any{"selector": name})
	s.bus.Notify()

	go s.runResolver(name, r, args, key)
}

func (s *Store) runResolver(name string, r Resolver, args, key []any) {
	defer func() {
		if rec := recover(); rec != nil {
			s.resolverFailed(name, fmt.Errorf("resolver panic: %v", rec))
		}
	}()

	if s.sem != nil {
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			s.resolverFailed(name, fmt.Errorf("acquire resolver slot: %w", err))
			return
		}
		defer s.sem.Release(1)
	}

	if err := r.Fulfill(s.ctx, s, args...); err != nil {
		s.resolverFailed(name, err)
		return
	}

	resolutionsFinishedTotal.WithLabelValues(s.name, name).Inc()
	observability.Emit(s.ctx, s.observer, EventResolutionFinish, observability.LevelVerbose, "store", s.name,
		map[string]any{"selector": name})
	s.Dispatch(FinishResolution(name, key))
}

// resolverFailed reports a failed resolver. The tuple stays InProgress.
func (s *Store) resolverFailed(name string, err error) {
	resolutionsFailedTotal.WithLabelValues(s.name, name).Inc()
	observability.Emit(s.ctx, s.observer, EventResolutionError, observability.LevelError, "store", s.name,
		map[string]any{"selector": name, "error": err.Error()})
}
