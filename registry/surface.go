package registry

import (
	"context"
	"maps"
	"slices"

	"github.com/tailored-agentic-units/storekit/listener"
	"github.com/tailored-agentic-units/storekit/observability"
	"github.com/tailored-agentic-units/storekit/store"
)

// Surface is the set of operations a Registry exposes. A Plugin returns a
// partial Surface: nil fields keep the current operation, non-nil fields
// replace it, and Extensions are added to the existing ones.
type Surface struct {
	RegisterGenericStore func(key string, adapter store.Adapter) error
	RegisterStore        func(key string, cfg store.Config) error
	Select               func(ctx context.Context, key string) *store.Selectors
	Dispatch             func(ctx context.Context, key string) *store.Actions
	Subscribe            func(fn listener.Listener) listener.Unsubscribe
	ResolveSelect        func(key string) *ResolveSelectors

	// Extensions holds capabilities that are not part of the base surface,
	// keyed by name (e.g. "persistence.flush").
	Extensions map[string]any
}

// Plugin derives surface changes from the registry it is applied to. The
// registry passed in is the one being extended; plugins that wrap an
// operation call through it to reach the previous implementation.
type Plugin func(r *Registry, options any) Surface

func (s Surface) merge(ext Surface) Surface {
	out := s
	if ext.RegisterGenericStore != nil {
		out.RegisterGenericStore = ext.RegisterGenericStore
	}
	if ext.RegisterStore != nil {
		out.RegisterStore = ext.RegisterStore
	}
	if ext.Select != nil {
		out.Select = ext.Select
	}
	if ext.Dispatch != nil {
		out.Dispatch = ext.Dispatch
	}
	if ext.Subscribe != nil {
		out.Subscribe = ext.Subscribe
	}
	if ext.ResolveSelect != nil {
		out.ResolveSelect = ext.ResolveSelect
	}

	out.Extensions = maps.Clone(s.Extensions)
	if out.Extensions == nil {
		out.Extensions = make(map[string]any, len(ext.Extensions))
	}
	maps.Copy(out.Extensions, ext.Extensions)
	return out
}

// Use applies plugin and returns the extended registry. The receiver is not
// modified; both registries share stores, listeners, and parent.
func (r *Registry) Use(plugin Plugin, options any) *Registry {
	ext := plugin(r, options)
	next := &Registry{
		core:    r.core,
		surface: r.surface.merge(ext),
	}

	observability.Emit(r.core.ctx, r.core.observer, EventPluginUse, observability.LevelInfo, "registry", "",
		map[string]any{"registry": r.core.name, "extensions": slices.Sorted(maps.Keys(ext.Extensions))})
	return next
}

// Extension returns a capability added by a plugin.
func (r *Registry) Extension(name string) (any, bool) {
	v, ok := r.surface.Extensions[name]
	return v, ok
}

// Extensions lists the capability names added by plugins, sorted.
func (r *Registry) Extensions() []string {
	return slices.Sorted(maps.Keys(r.surface.Extensions))
}
