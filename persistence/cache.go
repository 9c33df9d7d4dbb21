package persistence

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Cache is a write-behind buffer in front of a Storage. It keeps an index of
// the keys storage holds, loads values on demand, and records writes until
// Flush. Get and Set never perform I/O. All methods are safe for concurrent
// use.
type Cache struct {
	storage Storage
	values  map[string][]byte
	index   map[string]bool
	dirty   map[string]bool
	removed map[string]bool
	mu      sync.RWMutex
}

// NewCache creates a Cache backed by storage.
func NewCache(storage Storage) *Cache {
	return &Cache{
		storage: storage,
		values:  make(map[string][]byte),
		index:   make(map[string]bool),
		dirty:   make(map[string]bool),
		removed: make(map[string]bool),
	}
}

// Bootstrap indexes every key in storage and loads the values of keys under
// any of prefixes.
func (c *Cache) Bootstrap(ctx context.Context, prefixes ...string) error {
	keys, err := c.storage.List(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap index: %w", err)
	}

	c.mu.Lock()
	for _, key := range keys {
		c.index[key] = true
	}
	c.mu.Unlock()

	toLoad := slices.DeleteFunc(slices.Clone(keys), func(key string) bool {
		return !slices.ContainsFunc(prefixes, func(prefix string) bool {
			return strings.HasPrefix(key, prefix)
		})
	})
	return c.Resolve(ctx, toLoad...)
}

// Resolve loads keys that are not cached yet.
func (c *Cache) Resolve(ctx context.Context, keys ...string) error {
	c.mu.RLock()
	var toLoad []string
	for _, key := range keys {
		if _, cached := c.values[key]; !cached {
			toLoad = append(toLoad, key)
		}
	}
	c.mu.RUnlock()

	if len(toLoad) == 0 {
		return nil
	}

	entries, err := c.storage.Load(ctx, toLoad...)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	c.mu.Lock()
	for _, e := range entries {
		// A Set that raced with the load wins.
		if !c.dirty[e.Key] {
			c.values[e.Key] = e.Value
		}
		c.index[e.Key] = true
	}
	c.mu.Unlock()

	return nil
}

// Flush writes dirty entries to storage and deletes removed ones. Entries
// changed while a flush is in progress stay dirty for the next one.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.RLock()
	var toSave []Entry
	for key := range c.dirty {
		if val, ok := c.values[key]; ok {
			toSave = append(toSave, Entry{Key: key, Value: val})
		}
	}
	toDelete := make([]string, 0, len(c.removed))
	for key := range c.removed {
		toDelete = append(toDelete, key)
	}
	c.mu.RUnlock()

	if len(toSave) > 0 {
		if err := c.storage.Save(ctx, toSave...); err != nil {
			return fmt.Errorf("flush save: %w", err)
		}
	}
	if len(toDelete) > 0 {
		if err := c.storage.Delete(ctx, toDelete...); err != nil {
			return fmt.Errorf("flush delete: %w", err)
		}
	}

	c.mu.Lock()
	for _, e := range toSave {
		if slices.Equal(c.values[e.Key], e.Value) {
			delete(c.dirty, e.Key)
		}
	}
	for _, key := range toDelete {
		if !c.index[key] {
			delete(c.removed, key)
		}
	}
	c.mu.Unlock()

	return nil
}

// Dirty reports how many entries are waiting for Flush.
func (c *Cache) Dirty() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dirty) + len(c.removed)
}

func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, ok := c.values[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(val), true
}

func (c *Cache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = slices.Clone(value)
	c.index[key] = true
	c.dirty[key] = true
	delete(c.removed, key)
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.values, key)
	delete(c.index, key)
	delete(c.dirty, key)
	c.removed[key] = true
}

func (c *Cache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index[key]
}

func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.index))
	for key := range c.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
