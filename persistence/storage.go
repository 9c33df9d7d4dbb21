// Package persistence saves and restores store state across processes.
//
// Storage is the raw key-value backend. Cache sits in front of it so that
// state changes are buffered in memory and written out on Flush. Persister
// ties the two to a registry as a plugin:
//
//	p, err := persistence.New(ctx, persistence.NewFileStorage("data"), persistence.Options{})
//	reg = reg.Use(p.Plugin, nil)
//	reg.RegisterStore("prefs", store.Config{Reducer: prefs, Persist: true})
//
// Stores registered with Config.Persist start from their saved state, and
// every change is recorded in the cache until the "persistence.flush"
// extension writes it to storage.
package persistence

import "context"

// Storage translates between external storage and persisted entries.
// Implementations are stateless: they perform I/O on each call without caching.
type Storage interface {
	// List returns all available keys.
	List(ctx context.Context) ([]string, error)
	// Load retrieves entries for the specified keys.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save persists entries, creating or overwriting as needed.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes entries. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// Entry is one persisted value. Keys are /-separated paths; values are the
// encoded state of a store.
type Entry struct {
	Key   string
	Value []byte
}
