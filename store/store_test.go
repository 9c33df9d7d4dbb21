package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tailored-agentic-units/storekit/listener"
	"github.com/tailored-agentic-units/storekit/observability"
	"github.com/tailored-agentic-units/storekit/store"
)

func counterConfig() store.Config {
	return store.Config{
		Reducer: func(state any, action store.Action) any {
			n, _ := state.(int)
			if action.Type == "INC" {
				return n + 1
			}
			return n
		},
		Actions: map[string]store.ActionCreator{
			"increment": func(...any) store.Action { return store.Action{Type: "INC"} },
		},
		Selectors: map[string]store.Selector{
			"getCount": func(state any, _ ...any) any { return state },
		},
	}
}

// thingsConfig builds a store whose getThing selector is backed by a resolver
// that waits for release before receiving "thing-<id>".
func thingsConfig(calls *atomic.Int32, release <-chan struct{}) store.Config {
	return store.Config{
		Reducer: func(state any, action store.Action) any {
			things, _ := state.(map[any]string)
			next := make(map[any]string, len(things)+1)
			for k, v := range things {
				next[k] = v
			}
			if action.Type == "RECEIVE" {
				p := action.Payload.([2]any)
				next[p[0]] = p[1].(string)
			}
			return next
		},
		Selectors: map[string]store.Selector{
			"getThing": func(state any, args ...any) any {
				v, ok := state.(map[any]string)[args[0]]
				if !ok {
					return nil
				}
				return v
			},
		},
		Resolvers: map[string]store.Resolver{
			"getThing": {
				Fulfill: func(ctx context.Context, s *store.Store, args ...any) error {
					calls.Add(1)
					select {
					case <-release:
					case <-ctx.Done():
						return ctx.Err()
					}
					s.Dispatch(store.Action{Type: "RECEIVE", Payload: [2]any{args[0], "thing"}})
					return nil
				},
			},
		},
	}
}

func waitForStatus(t *testing.T, s *store.Store, want store.Status, selector string, args ...any) {
	t.Helper()

	changed := make(chan struct{}, 1)
	unsub := s.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsub()

	deadline := time.After(2 * time.Second)
	for s.Status(selector, args...) != want {
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("status of %s%v = %v, want %v", selector, args, s.Status(selector, args...), want)
		}
	}
}

func TestNew_MissingReducer(t *testing.T) {
	_, err := store.New("broken", store.Config{})

	if !errors.Is(err, store.ErrConfiguration) {
		t.Fatalf("New() error = %v, want ErrConfiguration", err)
	}
	var cfgErr *store.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("New() error %T is not a *ConfigurationError", err)
	}
	if cfgErr.Namespace != "broken" || cfgErr.Missing != "reducer" {
		t.Errorf("ConfigurationError = %+v", cfgErr)
	}
}

func TestStore_Counter(t *testing.T) {
	s, err := store.New("counter", counterConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for range 2 {
		if _, err := s.Actions().Call("increment"); err != nil {
			t.Fatalf("increment error = %v", err)
		}
	}

	got, err := s.Selectors().Call("getCount")
	if err != nil {
		t.Fatalf("getCount error = %v", err)
	}
	if got != 2 {
		t.Errorf("getCount() = %v, want 2", got)
	}
}

func TestStore_InitialState(t *testing.T) {
	cfg := counterConfig()
	cfg.InitialState = 40

	s, err := store.New("counter", cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.Actions().Call("increment")
	s.Actions().Call("increment")

	if got := s.State(); got != 42 {
		t.Errorf("State() = %v, want 42", got)
	}
}

func TestStore_DispatchNotifies(t *testing.T) {
	rec := &observability.Recorder{}
	s, _ := store.New("counter", counterConfig(), store.WithObserver(rec))

	count := 0
	unsub := s.Subscribe(func() { count++ })
	s.Actions().Call("increment")
	s.Dispatch(store.Action{Type: "UNKNOWN"})
	unsub()
	s.Actions().Call("increment")

	if count != 2 {
		t.Errorf("listener called %d times, want 2", count)
	}
	if got := len(rec.OfType(store.EventDispatch)); got != 3 {
		t.Errorf("recorded %d dispatch events, want 3", got)
	}
}

func TestStore_BundleLookups(t *testing.T) {
	s, _ := store.New("counter", counterConfig())

	if _, err := s.Selectors().Call("missing"); !errors.Is(err, store.ErrUnknownSelector) {
		t.Errorf("Call(missing) error = %v, want ErrUnknownSelector", err)
	}
	if _, err := s.Actions().Call("missing"); !errors.Is(err, store.ErrUnknownAction) {
		t.Errorf("Call(missing) error = %v, want ErrUnknownAction", err)
	}

	names := s.Selectors().Names()
	wantNames := []string{
		"getCachedResolvers", "getCount", "getIsResolving",
		"hasFinishedResolution", "hasStartedResolution", "isResolving",
	}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Errorf("selector names mismatch (-want +got):\n%s", diff)
	}
}

func TestBundles_NilSafe(t *testing.T) {
	var sel *store.Selectors
	var act *store.Actions

	if sel.Names() != nil || act.Names() != nil {
		t.Error("nil bundles should have no names")
	}
	if _, ok := sel.Lookup("x"); ok {
		t.Error("nil Selectors.Lookup reported a selector")
	}
	if _, err := sel.Call("x"); !errors.Is(err, store.ErrUnknownSelector) {
		t.Errorf("nil Selectors.Call error = %v", err)
	}
	if _, err := act.Call("x"); !errors.Is(err, store.ErrUnknownAction) {
		t.Errorf("nil Actions.Call error = %v", err)
	}
}

func TestSelectors_HasResolver(t *testing.T) {
	var calls atomic.Int32
	s, err := store.New("things", thingsConfig(&calls, nil))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want bool
	}{
		{name: "getThing", want: true},
		{name: store.SelectorIsResolving, want: false},
		{name: "missing", want: false},
	}
	for _, tt := range tests {
		if got := s.Selectors().HasResolver(tt.name); got != tt.want {
			t.Errorf("HasResolver(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	var nilBundle *store.Selectors
	if nilBundle.HasResolver("getThing") {
		t.Error("nil bundle reported a resolver")
	}
}

func TestStore_ResolverLifecycle(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s, err := store.New("things", thingsConfig(&calls, release))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := s.Status("getThing", 5); got != store.NotStarted {
		t.Fatalf("initial status = %v, want not_started", got)
	}

	got, _ := s.Selectors().Call("getThing", 5)
	if got != nil {
		t.Errorf("getThing(5) before resolution = %v, want nil", got)
	}
	if status := s.Status("getThing", 5); status != store.InProgress {
		t.Errorf("status after first call = %v, want in_progress", status)
	}

	// Repeated calls with the same tuple do not retrigger.
	s.Selectors().Call("getThing", 5)
	s.Selectors().Call("getThing", 5)

	close(release)
	waitForStatus(t, s, store.Finished, "getThing", 5)

	if n := calls.Load(); n != 1 {
		t.Errorf("resolver ran %d times, want 1", n)
	}
	got, _ = s.Selectors().Call("getThing", 5)
	if got != "thing" {
		t.Errorf("getThing(5) after resolution = %v, want thing", got)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("resolver ran %d times after finishing, want 1", n)
	}
}

func TestStore_ResolverConcurrentTrigger(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s, _ := store.New("things", thingsConfig(&calls, release))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Selectors().Call("getThing", 1)
		}()
	}
	wg.Wait()

	close(release)
	waitForStatus(t, s, store.Finished, "getThing", 1)

	if n := calls.Load(); n != 1 {
		t.Errorf("resolver ran %d times, want 1", n)
	}
}

func TestStore_ResolverArgumentEquality(t *testing.T) {
	var calls atomic.Int32
	s, _ := store.New("things", store.Config{
		Reducer:   func(state any, _ store.Action) any { return state },
		Selectors: map[string]store.Selector{"getThing": func(any, ...any) any { return nil }},
		Resolvers: map[string]store.Resolver{
			"getThing": {
				Fulfill: func(context.Context, *store.Store, ...any) error {
					calls.Add(1)
					return nil
				},
			},
		},
	})

	sel := s.Selectors()
	sel.Call("getThing", map[string]any{"id": 1, "tags": []any{"a"}})
	sel.Call("getThing", map[string]any{"id": 1, "tags": []any{"a"}})
	sel.Call("getThing", map[string]any{"id": 2})
	sel.Call("getThing", "x", nil)
	sel.Call("getThing", "x")

	waitForStatus(t, s, store.Finished, "getThing", map[string]any{"id": 1, "tags": []any{"a"}})
	waitForStatus(t, s, store.Finished, "getThing", map[string]any{"id": 2})
	waitForStatus(t, s, store.Finished, "getThing", "x")

	if n := calls.Load(); n != 3 {
		t.Errorf("resolver ran %d times, want 3 (deep-equal tuples share a row)", n)
	}
}

func TestStore_ResolverFailureStaysInProgress(t *testing.T) {
	tests := []struct {
		name    string
		fulfill func(context.Context, *store.Store, ...any) error
	}{
		{
			name: "error",
			fulfill: func(context.Context, *store.Store, ...any) error {
				return errors.New("backend unavailable")
			},
		},
		{
			name: "panic",
			fulfill: func(context.Context, *store.Store, ...any) error {
				panic("resolver exploded")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &observability.Recorder{}
			s, _ := store.New("failing", store.Config{
				Reducer:   func(state any, _ store.Action) any { return state },
				Selectors: map[string]store.Selector{"getThing": func(any, ...any) any { return nil }},
				Resolvers: map[string]store.Resolver{"getThing": {Fulfill: tt.fulfill}},
			}, store.WithObserver(rec))

			s.Selectors().Call("getThing", 1)

			deadline := time.Now().Add(2 * time.Second)
			for len(rec.OfType(store.EventResolutionError)) == 0 {
				if time.Now().After(deadline) {
					t.Fatal("no resolution error event recorded")
				}
				time.Sleep(5 * time.Millisecond)
			}

			if status := s.Status("getThing", 1); status != store.InProgress {
				t.Errorf("status after failure = %v, want in_progress", status)
			}

			// The store layer can still mark the tuple finished.
			s.Actions().Call(store.ActionNameFinishResolution, "getThing", []any{1})
			if status := s.Status("getThing", 1); status != store.Finished {
				t.Errorf("status after finishResolution = %v, want finished", status)
			}
		})
	}
}

func TestStore_IsFulfilledSkipsResolver(t *testing.T) {
	var calls atomic.Int32
	s, _ := store.New("cached", store.Config{
		Reducer:      func(state any, _ store.Action) any { return state },
		InitialState: "ready",
		Selectors:    map[string]store.Selector{"get": func(state any, _ ...any) any { return state }},
		Resolvers: map[string]store.Resolver{
			"get": {
				Fulfill: func(context.Context, *store.Store, ...any) error {
					calls.Add(1)
					return nil
				},
				IsFulfilled: func(state any, _ ...any) bool { return state == "ready" },
			},
		},
	})

	s.Selectors().Call("get")

	if status := s.Status("get"); status != store.Finished {
		t.Errorf("status = %v, want finished", status)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("Fulfill ran %d times, want 0", n)
	}
}

func TestStore_InvalidateResolution(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	close(release)
	s, _ := store.New("things", thingsConfig(&calls, release))

	s.Selectors().Call("getThing", 7)
	waitForStatus(t, s, store.Finished, "getThing", 7)

	s.Actions().Call(store.ActionNameInvalidateResolution, "getThing", []any{7})
	if status := s.Status("getThing", 7); status != store.NotStarted {
		t.Fatalf("status after invalidate = %v, want not_started", status)
	}

	s.Selectors().Call("getThing", 7)
	waitForStatus(t, s, store.Finished, "getThing", 7)
	if n := calls.Load(); n != 2 {
		t.Errorf("resolver ran %d times, want 2", n)
	}

	s.Actions().Call(store.ActionNameInvalidateResolutionForStore)
	cached, _ := s.Selectors().Call(store.SelectorGetCachedResolvers)
	if len(cached.(map[string][]store.CachedResolution)) != 0 {
		t.Errorf("cached resolvers after store invalidation = %v", cached)
	}
}

func TestStore_MetadataSelectors(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s, _ := store.New("things", thingsConfig(&calls, release))
	sel := s.Selectors()

	check := func(name string, want any) {
		t.Helper()
		got, err := sel.Call(name, "getThing", []any{3})
		if err != nil {
			t.Fatalf("%s error = %v", name, err)
		}
		if got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}

	check(store.SelectorGetIsResolving, nil)
	check(store.SelectorHasStartedResolution, false)

	sel.Call("getThing", 3)
	check(store.SelectorGetIsResolving, true)
	check(store.SelectorIsResolving, true)
	check(store.SelectorHasStartedResolution, true)
	check(store.SelectorHasFinishedResolution, false)

	close(release)
	waitForStatus(t, s, store.Finished, "getThing", 3)
	check(store.SelectorGetIsResolving, false)
	check(store.SelectorHasFinishedResolution, true)

	cached, _ := sel.Call(store.SelectorGetCachedResolvers)
	want := map[string][]store.CachedResolution{
		"getThing": {{Args: []any{3}, Status: store.Finished}},
	}
	if diff := cmp.Diff(want, cached); diff != "" {
		t.Errorf("getCachedResolvers mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_MaxConcurrentResolvers(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})

	s, _ := store.New("bounded", store.Config{
		Reducer:                func(state any, _ store.Action) any { return state },
		MaxConcurrentResolvers: 1,
		Selectors:              map[string]store.Selector{"get": func(any, ...any) any { return nil }},
		Resolvers: map[string]store.Resolver{
			"get": {
				Fulfill: func(context.Context, *store.Store, ...any) error {
					n := running.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					<-release
					running.Add(-1)
					return nil
				},
			},
		},
	})

	for i := range 3 {
		s.Selectors().Call("get", i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)

	for i := range 3 {
		waitForStatus(t, s, store.Finished, "get", i)
	}
	if p := peak.Load(); p != 1 {
		t.Errorf("peak concurrent resolvers = %d, want 1", p)
	}
}

func TestValidateAdapter(t *testing.T) {
	s, _ := store.New("counter", counterConfig())
	var nilStore *store.Store

	full := store.AdapterFuncs{
		GetSelectors: s.Selectors,
		GetActions:   s.Actions,
		OnChange:     func(fn listener.Listener) listener.Unsubscribe { return s.Subscribe(fn) },
	}

	tests := []struct {
		name    string
		adapter store.Adapter
		missing string
	}{
		{name: "store", adapter: s},
		{name: "complete funcs", adapter: full},
		{name: "nil interface", adapter: nil, missing: "adapter"},
		{name: "typed nil", adapter: nilStore, missing: "adapter"},
		{name: "no selectors", adapter: store.AdapterFuncs{GetActions: full.GetActions, OnChange: full.OnChange}, missing: "GetSelectors"},
		{name: "no actions", adapter: store.AdapterFuncs{GetSelectors: full.GetSelectors, OnChange: full.OnChange}, missing: "GetActions"},
		{name: "no subscribe", adapter: store.AdapterFuncs{GetSelectors: full.GetSelectors, GetActions: full.GetActions}, missing: "Subscribe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.ValidateAdapter(tt.adapter)
			if tt.missing == "" {
				if err != nil {
					t.Errorf("ValidateAdapter() error = %v", err)
				}
				return
			}
			var cfgErr *store.ConfigurationError
			if !errors.As(err, &cfgErr) || cfgErr.Missing != tt.missing {
				t.Errorf("ValidateAdapter() error = %v, want missing %s", err, tt.missing)
			}
		})
	}
}
