package registry

import (
	"context"
	"slices"
	"sync"
)

type trackerKey struct{}

// Tracker records the namespaces looked up through SelectContext and
// DispatchContext. Consumers use it to subscribe only to the stores a
// computation actually read.
type Tracker struct {
	mu   sync.Mutex
	keys []string
}

// TrackStores returns a context carrying a new Tracker. Lookups delegated to
// a parent registry are recorded in the same Tracker.
func TrackStores(ctx context.Context) (context.Context, *Tracker) {
	t := &Tracker{}
	return context.WithValue(ctx, trackerKey{}, t), t
}

// Stores returns the recorded namespaces in first-lookup order.
func (t *Tracker) Stores() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.keys)
}

func (t *Tracker) add(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !slices.Contains(t.keys, key) {
		t.keys = append(t.keys, key)
	}
}

func trackerFrom(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey{}).(*Tracker)
	return t
}
