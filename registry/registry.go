// Package registry implements the store-of-stores: a map from namespace to
// store adapter with select/dispatch/subscribe, parent delegation, promise
// style resolve-select, and a plugin hook for extending the registry surface.
//
//	reg, err := registry.New(map[string]store.Config{"counter": counterCfg}, nil)
//	reg.Dispatch("counter").Call("increment")
//	count, _ := reg.Select("counter").Call("getCount")
//
// Lookups that miss locally are delegated to the parent registry, one level
// at a time. A miss with no parent returns nil; bundles are nil-safe, so
// callers check for nil when absence matters.
//
// # Change notification
//
// Every registered store's notifications are forwarded to the registry's own
// listener bus, and a child registry forwards its parent's notifications as
// well. Subscribe therefore observes changes in any store reachable from the
// registry.
//
// # Resolve-select
//
// ResolveSelect wraps every selector except the resolution metadata
// selectors in a ResolveFunc that blocks until the selector's resolver has
// finished for the given arguments, then returns the selector's value:
//
//	thing, err := reg.ResolveSelect("core").Call(ctx, "getThing", 5)
//
// A resolver that fails leaves its tuple in progress, and the call waits
// until ctx is done.
//
// # Plugins
//
// Use applies a Plugin that may override any operation of the Surface and
// add named extensions. It returns a new *Registry sharing the same stores;
// the receiver is left unchanged.
package registry

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/storekit/listener"
	"github.com/tailored-agentic-units/storekit/observability"
	"github.com/tailored-agentic-units/storekit/store"
)

const defaultName = "default"

// Option configures a Registry at construction.
type Option func(*core)

// WithName names the registry in events and metrics.
func WithName(name string) Option {
	return func(c *core) { c.name = name }
}

// WithObserver sets the observer for registry, bus, and store events.
func WithObserver(o observability.Observer) Option {
	return func(c *core) { c.observer = observability.OrNoOp(o) }
}

// WithContext sets the context that resolvers of stores built by this
// registry run under.
func WithContext(ctx context.Context) Option {
	return func(c *core) { c.ctx = ctx }
}

type entry struct {
	adapter     store.Adapter
	unsubscribe listener.Unsubscribe
}

// core is the state shared by a registry and every registry derived from it
// with Use.
type core struct {
	id       string
	name     string
	parent   *Registry
	stores   map[string]entry
	bus      *listener.Bus
	observer observability.Observer
	ctx      context.Context

	unsubscribeParent listener.Unsubscribe

	resolveMu     sync.Mutex
	resolveSource *store.Selectors
	resolveCached *ResolveSelectors

	mu sync.RWMutex
}

// Registry is a namespaced collection of stores. All methods are safe for
// concurrent use.
type Registry struct {
	core    *core
	surface Surface
}

// New creates a registry, registers configs in key order, and links it to
// parent when parent is non-nil.
func New(configs map[string]store.Config, parent *Registry, opts ...Option) (*Registry, error) {
	c := &core{
		id:       uuid.Must(uuid.NewV7()).String(),
		name:     defaultName,
		parent:   parent,
		stores:   make(map[string]entry),
		observer: observability.NoOpObserver{},
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.bus = listener.New(listener.WithObserver(c.observer), listener.WithSource("registry."+c.name))

	r := &Registry{core: c}
	r.surface = c.baseSurface()

	if parent != nil {
		c.unsubscribeParent = parent.Subscribe(c.bus.Notify)
	}

	keys := slices.Sorted(maps.Keys(configs))
	for _, key := range keys {
		if err := r.RegisterStore(key, configs[key]); err != nil {
			r.Close()
			return nil, err
		}
	}

	return r, nil
}

func (c *core) baseSurface() Surface {
	return Surface{
		RegisterGenericStore: c.registerGenericStore,
		RegisterStore:        c.registerStore,
		Select:               c.selectContext,
		Dispatch:             c.dispatchContext,
		Subscribe:            c.bus.Subscribe,
		ResolveSelect:        c.resolveSelect,
	}
}

// ID returns the registry's unique identifier.
func (r *Registry) ID() string { return r.core.id }

// Name returns the configured registry name.
func (r *Registry) Name() string { return r.core.name }

// Parent returns the parent registry, or nil.
func (r *Registry) Parent() *Registry { return r.core.parent }

// RegisterGenericStore registers adapter under key. An invalid adapter is a
// *store.ConfigurationError and leaves the registry unchanged. Reusing a key
// replaces the previous adapter (last write wins).
func (r *Registry) RegisterGenericStore(key string, adapter store.Adapter) error {
	return r.surface.RegisterGenericStore(key, adapter)
}

// RegisterStore builds a store from cfg with NewStore and registers it.
func (r *Registry) RegisterStore(key string, cfg store.Config) error {
	return r.surface.RegisterStore(key, cfg)
}

// NewStore builds a store configured with this registry's observer and
// resolver context without registering it. Plugins that wrap RegisterStore
// use it to keep a handle on the store they register.
func (r *Registry) NewStore(key string, cfg store.Config) (*store.Store, error) {
	return r.core.newStore(key, cfg)
}

// Select returns the selectors of key, looking in the parent when key is not
// registered locally. It returns nil when no registry has key.
func (r *Registry) Select(key string) *store.Selectors {
	return r.surface.Select(context.Background(), key)
}

// SelectContext is Select with an explicit context. A Tracker installed in
// ctx with TrackStores records key, including on the parent's side.
func (r *Registry) SelectContext(ctx context.Context, key string) *store.Selectors {
	return r.surface.Select(ctx, key)
}

// Dispatch returns the actions of key with the same resolution order as
// Select.
func (r *Registry) Dispatch(key string) *store.Actions {
	return r.surface.Dispatch(context.Background(), key)
}

// DispatchContext is Dispatch with an explicit context.
func (r *Registry) DispatchContext(ctx context.Context, key string) *store.Actions {
	return r.surface.Dispatch(ctx, key)
}

// Subscribe registers fn on the registry bus. fn runs after every change in
// any store reachable from this registry.
func (r *Registry) Subscribe(fn listener.Listener) listener.Unsubscribe {
	return r.surface.Subscribe(fn)
}

// SubscribeStore registers fn on a single store, delegating to the parent
// when key is not registered locally.
func (r *Registry) SubscribeStore(key string, fn listener.Listener) (listener.Unsubscribe, error) {
	if e, ok := r.core.lookup(key); ok {
		return e.adapter.Subscribe(fn), nil
	}
	if r.core.parent != nil {
		return r.core.parent.SubscribeStore(key, fn)
	}
	return nil, storeNotFound(key)
}

// ResolveSelect returns resolver-aware selectors for key, or nil when no
// registry has key.
func (r *Registry) ResolveSelect(key string) *ResolveSelectors {
	return r.surface.ResolveSelect(key)
}

// Batch runs fn with registry notifications held back, then notifies once if
// anything changed.
func (r *Registry) Batch(fn func()) {
	r.core.bus.Pause()
	defer r.core.bus.Resume()
	fn()
}

// Keys returns the locally registered namespaces in sorted order.
func (r *Registry) Keys() []string {
	r.core.mu.RLock()
	defer r.core.mu.RUnlock()

	keys := make([]string, 0, len(r.core.stores))
	for key := range r.core.stores {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Close detaches the registry from its parent and from its stores. The
// stores keep working; the registry bus no longer hears about them.
func (r *Registry) Close() {
	c := r.core
	c.mu.Lock()
	entries := slices.Collect(maps.Values(c.stores))
	unsubscribeParent := c.unsubscribeParent
	c.unsubscribeParent = nil
	c.mu.Unlock()

	for _, e := range entries {
		e.unsubscribe()
	}
	if unsubscribeParent != nil {
		unsubscribeParent()
	}
}

func (c *core) lookup(key string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.stores[key]
	return e, ok
}

func (c *core) newStore(key string, cfg store.Config) (*store.Store, error) {
	return store.New(key, cfg, store.WithObserver(c.observer), store.WithContext(c.ctx))
}

func (c *core) registerStore(key string, cfg store.Config) error {
	s, err := c.newStore(key, cfg)
	if err != nil {
		return err
	}
	return c.registerGenericStore(key, s)
}

func (c *core) registerGenericStore(key string, adapter store.Adapter) error {
	if err := store.ValidateAdapter(adapter); err != nil {
		if cfgErr, ok := err.(*store.ConfigurationError); ok && cfgErr.Namespace == "" {
			cfgErr.Namespace = key
		}
		observability.Emit(c.ctx, c.observer, EventStoreRejected, observability.LevelWarning, "registry", key,
			map[string]any{"registry": c.name, "error": err.Error()})
		return err
	}

	unsubscribe := adapter.Subscribe(c.bus.Notify)

	c.mu.Lock()
	previous, replaced := c.stores[key]
	c.stores[key] = entry{adapter: adapter, unsubscribe: unsubscribe}
	c.mu.Unlock()

	if replaced {
		previous.unsubscribe()
		observability.Emit(c.ctx, c.observer, EventStoreReplace, observability.LevelWarning, "registry", key,
			map[string]any{"registry": c.name})
	}

	storesRegisteredTotal.WithLabelValues(c.name).Inc()
	observability.Emit(c.ctx, c.observer, EventStoreRegister, observability.LevelInfo, "registry", key,
		map[string]any{"registry": c.name, "registry_id": c.id})
	return nil
}

func (c *core) selectContext(ctx context.Context, key string) *store.Selectors {
	if t := trackerFrom(ctx); t != nil {
		t.add(key)
	}
	if e, ok := c.lookup(key); ok {
		return e.adapter.Selectors()
	}
	if c.parent != nil {
		return c.parent.SelectContext(ctx, key)
	}
	c.miss(ctx, "select", key)
	return nil
}

func (c *core) dispatchContext(ctx context.Context, key string) *store.Actions {
	if t := trackerFrom(ctx); t != nil {
		t.add(key)
	}
	if e, ok := c.lookup(key); ok {
		return e.adapter.Actions()
	}
	if c.parent != nil {
		return c.parent.DispatchContext(ctx, key)
	}
	c.miss(ctx, "dispatch", key)
	return nil
}

func (c *core) miss(ctx context.Context, op, key string) {
	lookupMissesTotal.WithLabelValues(c.name, op).Inc()
	observability.Emit(ctx, c.observer, EventLookupMiss, observability.LevelVerbose, "registry", key,
		map[string]any{"registry": c.name, "operation": op})
}
