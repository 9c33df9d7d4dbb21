package registry

import (
	"fmt"
	"sort"
	"sync"
)

type pluginTable struct {
	entries map[string]Plugin
	mu      sync.RWMutex
}

var plugins = &pluginTable{
	entries: make(map[string]Plugin),
}

// RegisterPlugin adds a named plugin to the process-wide plugin table so that
// configuration can refer to it by name.
// Returns ErrPluginExists if the name is taken; use ReplacePlugin to swap it.
func RegisterPlugin(name string, plugin Plugin) error {
	if name == "" {
		return ErrEmptyName
	}

	plugins.mu.Lock()
	defer plugins.mu.Unlock()

	if _, exists := plugins.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrPluginExists, name)
	}

	plugins.entries[name] = plugin
	return nil
}

// ReplacePlugin swaps the implementation of a registered plugin.
// Returns ErrPluginNotFound if no plugin has that name.
func ReplacePlugin(name string, plugin Plugin) error {
	if name == "" {
		return ErrEmptyName
	}

	plugins.mu.Lock()
	defer plugins.mu.Unlock()

	if _, exists := plugins.entries[name]; !exists {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}

	plugins.entries[name] = plugin
	return nil
}

// LookupPlugin returns the named plugin.
func LookupPlugin(name string) (Plugin, bool) {
	plugins.mu.RLock()
	defer plugins.mu.RUnlock()

	plugin, exists := plugins.entries[name]
	return plugin, exists
}

// Plugins lists the registered plugin names, sorted.
func Plugins() []string {
	plugins.mu.RLock()
	defer plugins.mu.RUnlock()

	names := make([]string, 0, len(plugins.entries))
	for name := range plugins.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UseNamed applies the plugin registered under name.
func (r *Registry) UseNamed(name string, options any) (*Registry, error) {
	plugin, ok := LookupPlugin(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return r.Use(plugin, options), nil
}
