package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tailored-agentic-units/storekit/listener"
	"github.com/tailored-agentic-units/storekit/observability"
	"github.com/tailored-agentic-units/storekit/registry"
	"github.com/tailored-agentic-units/storekit/store"
)

// Registry extensions added by Persister.Plugin.
const (
	ExtensionFlush  = "persistence.flush"  // FlushFunc
	ExtensionForget = "persistence.forget" // ForgetFunc
)

// FlushFunc writes buffered state to storage.
type FlushFunc func(ctx context.Context) error

// ForgetFunc drops the saved state of a namespace. The entry is deleted from
// storage on the next flush.
type ForgetFunc func(namespace string)

// Options configures a Persister.
type Options struct {
	// Prefix is prepended to store keys to form storage keys.
	Prefix   string
	Observer observability.Observer
}

// Persister restores and records the state of stores registered with
// Config.Persist.
type Persister struct {
	cache    *Cache
	prefix   string
	observer observability.Observer
	ctx      context.Context

	mu        sync.Mutex
	last      map[string][]byte
	recorders map[string]listener.Unsubscribe
}

// New creates a Persister and loads every entry under the prefix.
func New(ctx context.Context, storage Storage, opts Options) (*Persister, error) {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}

	p := &Persister{
		cache:    NewCache(storage),
		prefix:   opts.Prefix,
		observer: observability.OrNoOp(opts.Observer),
		ctx:      ctx,
		last:      make(map[string][]byte),
		recorders: make(map[string]listener.Unsubscribe),
	}
	if err := p.cache.Bootstrap(ctx, p.prefix); err != nil {
		return nil, err
	}
	return p, nil
}

// Plugin overrides RegisterStore for persisted stores and adds the
// ExtensionFlush extension. Stores without Config.Persist pass through.
func (p *Persister) Plugin(r *registry.Registry, _ any) registry.Surface {
	return registry.Surface{
		RegisterStore: func(key string, cfg store.Config) error {
			if !cfg.Persist {
				if err := r.RegisterStore(key, cfg); err != nil {
					return err
				}
				p.attach(key, nil)
				return nil
			}
			return p.register(r, key, cfg)
		},
		Extensions: map[string]any{
			ExtensionFlush:  FlushFunc(p.Flush),
			ExtensionForget: ForgetFunc(p.Forget),
		},
	}
}

// Flush writes changed store state to storage.
func (p *Persister) Flush(ctx context.Context) error {
	pending := p.cache.Dirty()
	if err := p.cache.Flush(ctx); err != nil {
		observability.Emit(ctx, p.observer, EventFlush, observability.LevelError, "persistence", "",
			map[string]any{"error": err.Error()})
		return err
	}
	observability.Emit(ctx, p.observer, EventFlush, observability.LevelInfo, "persistence", "",
		map[string]any{"entries": pending})
	return nil
}

// Forget drops the saved state of namespace. A store still registered under
// namespace is saved again on its next change.
func (p *Persister) Forget(namespace string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.last, namespace)
	p.cache.Delete(p.Key(namespace))

	observability.Emit(p.ctx, p.observer, EventForget, observability.LevelInfo, "persistence", namespace, nil)
}

// Saved lists the namespaces with saved state, sorted.
func (p *Persister) Saved() []string {
	var namespaces []string
	for _, key := range p.cache.Keys() {
		name, ok := strings.CutPrefix(key, p.prefix)
		if !ok {
			continue
		}
		if name, ok = strings.CutSuffix(name, ".json"); ok && name != "" {
			namespaces = append(namespaces, name)
		}
	}
	return namespaces
}

// Key returns the storage key used for namespace.
func (p *Persister) Key(namespace string) string {
	return p.prefix + namespace + ".json"
}

func (p *Persister) register(r *registry.Registry, key string, cfg store.Config) error {
	state, ok, err := p.restore(key, cfg)
	if err != nil {
		return err
	}
	if ok {
		cfg.InitialState = state
	}

	s, err := r.NewStore(key, cfg)
	if err != nil {
		return err
	}
	if err := r.RegisterGenericStore(key, s); err != nil {
		return err
	}

	p.attach(key, s.Subscribe(func() { p.record(key, s.State()) }))
	return nil
}

// attach installs the recorder of the store now registered under key and
// stops the recorder of the store it replaced.
func (p *Persister) attach(key string, unsubscribe listener.Unsubscribe) {
	p.mu.Lock()
	previous := p.recorders[key]
	if unsubscribe != nil {
		p.recorders[key] = unsubscribe
	} else {
		delete(p.recorders, key)
	}
	p.mu.Unlock()

	if previous != nil {
		previous()
	}
}

func (p *Persister) restore(key string, cfg store.Config) (any, bool, error) {
	storageKey := p.Key(key)
	if !p.cache.Has(storageKey) {
		return nil, false, nil
	}
	if err := p.cache.Resolve(p.ctx, storageKey); err != nil {
		return nil, false, err
	}

	data, ok := p.cache.Get(storageKey)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrKeyNotFound, storageKey)
	}

	decode := cfg.Decode
	if decode == nil {
		decode = decodeJSON
	}
	state, err := decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrDecode, key, err)
	}

	p.mu.Lock()
	p.last[key] = data
	p.mu.Unlock()

	observability.Emit(p.ctx, p.observer, EventRestore, observability.LevelInfo, "persistence", key,
		map[string]any{"bytes": len(data)})
	return state, true, nil
}

func (p *Persister) record(key string, state any) {
	data, err := json.Marshal(state)
	if err != nil {
		observability.Emit(p.ctx, p.observer, EventEncodeError, observability.LevelError, "persistence", key,
			map[string]any{"error": err.Error()})
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Resolution bookkeeping notifies without changing state.
	if bytes.Equal(p.last[key], data) {
		return
	}
	p.last[key] = data
	p.cache.Set(p.Key(key), data)

	observability.Emit(p.ctx, p.observer, EventRecord, observability.LevelVerbose, "persistence", key,
		map[string]any{"bytes": len(data)})
}

func decodeJSON(data []byte) (any, error) {
	var state any
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return state, nil
}

// Flusher returns the flush extension of r, if the persistence plugin has
// been applied.
func Flusher(r *registry.Registry) (FlushFunc, error) {
	ext, ok := r.Extension(ExtensionFlush)
	if !ok {
		return nil, errNotApplied
	}
	flush, ok := ext.(FlushFunc)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected type %T", errNotApplied, ext)
	}
	return flush, nil
}

// Forgetter returns the forget extension of r, if the persistence plugin has
// been applied.
func Forgetter(r *registry.Registry) (ForgetFunc, error) {
	ext, ok := r.Extension(ExtensionForget)
	if !ok {
		return nil, errNotApplied
	}
	forget, ok := ext.(ForgetFunc)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected type %T", errNotApplied, ext)
	}
	return forget, nil
}

var errNotApplied = errors.New("persistence plugin not applied")
