package registry

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/tailored-agentic-units/storekit/listener"
	"github.com/tailored-agentic-units/storekit/observability"
	"github.com/tailored-agentic-units/storekit/store"
)

// ResolveFunc calls a selector and waits until its resolver has finished for
// args. It returns ctx.Err() if ctx ends first.
type ResolveFunc func(ctx context.Context, args ...any) (any, error)

// ResolveSelectors is the resolver-aware counterpart of store.Selectors. A
// nil *ResolveSelectors is safe to use and has no selectors.
type ResolveSelectors struct {
	names []string
	funcs map[string]ResolveFunc
}

// Names returns the selector names in sorted order.
func (rs *ResolveSelectors) Names() []string {
	if rs == nil {
		return nil
	}
	return slices.Clone(rs.names)
}

// Lookup returns the named ResolveFunc.
func (rs *ResolveSelectors) Lookup(name string) (ResolveFunc, bool) {
	if rs == nil {
		return nil, false
	}
	fn, ok := rs.funcs[name]
	return fn, ok
}

// Call resolves the named selector.
func (rs *ResolveSelectors) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := rs.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownSelector, name)
	}
	return fn(ctx, args...)
}

// resolveSelect keeps one cached ResolveSelectors, keyed by the identity of
// the selector bundle it wraps. Asking for a different bundle replaces it.
func (c *core) resolveSelect(key string) *ResolveSelectors {
	selectors := c.selectContext(context.Background(), key)
	if selectors == nil {
		return nil
	}

	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	if c.resolveSource == selectors {
		return c.resolveCached
	}

	excluded := make(map[string]bool, len(store.MetadataSelectors))
	for _, name := range store.MetadataSelectors {
		excluded[name] = true
	}

	funcs := make(map[string]ResolveFunc)
	for _, name := range selectors.Names() {
		if excluded[name] {
			continue
		}
		fn, _ := selectors.Lookup(name)
		funcs[name] = c.resolveFunc(key, selectors, name, fn)
	}

	resolved := &ResolveSelectors{
		names: slices.Sorted(maps.Keys(funcs)),
		funcs: funcs,
	}
	c.resolveSource = selectors
	c.resolveCached = resolved
	return resolved
}

func (c *core) resolveFunc(key string, selectors *store.Selectors, name string, fn store.SelectorFunc) ResolveFunc {
	hasFinished, tracked := selectors.Lookup(store.SelectorHasFinishedResolution)
	tracked = tracked && selectors.HasResolver(name)

	return func(ctx context.Context, args ...any) (any, error) {
		value := fn(args...)
		if !tracked {
			return value, nil
		}

		finished := func() bool {
			done, _ := hasFinished(name, args).(bool)
			return done
		}
		// The resolver runs on its own goroutine and may finish while the
		// first read is still in progress, so a finished tuple is read again.
		if finished() {
			return fn(args...), nil
		}

		start := time.Now()
		result := make(chan any, 1)
		var once sync.Once
		check := listener.Listener(func() {
			if finished() {
				once.Do(func() { result <- fn(args...) })
			}
		})

		unsubscribe := c.bus.Subscribe(check)
		defer unsubscribe()

		// The resolver may have finished between the first check and the
		// subscription.
		check()

		select {
		case v := <-result:
			resolveWaitSeconds.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
			observability.Emit(ctx, c.observer, EventResolveWait, observability.LevelVerbose, "registry", key,
				map[string]any{"selector": name, "waited": time.Since(start).String()})
			return v, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
