// Package listener implements the publish/subscribe fan-out that stores and
// registries use to announce state changes.
//
// A Bus holds an ordered list of subscriptions. Notify calls every live
// listener exactly once, in subscription order, against a snapshot of the
// list taken when Notify starts:
//
//	bus := listener.New()
//	unsubscribe := bus.Subscribe(func() { fmt.Println("changed") })
//	bus.Notify()
//	unsubscribe()
//
// Listeners subscribed during a pass are first called on the next pass.
// Listeners unsubscribed during a pass are skipped if their turn has not
// come yet. A panicking listener is recovered and reported; the remaining
// listeners in the pass still run.
//
// Pause and Resume collapse any number of notifications into one, which is
// how registries implement batched updates.
package listener

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/storekit/observability"
)

// Listener is called with no arguments whenever the subject changes.
type Listener func()

// Unsubscribe removes the subscription that returned it. Calling it more
// than once is a no-op.
type Unsubscribe func()

type subscription struct {
	id     string
	fn     Listener
	active atomic.Bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithObserver sets the observer that receives subscription and panic events.
func WithObserver(o observability.Observer) Option {
	return func(b *Bus) { b.observer = observability.OrNoOp(o) }
}

// WithSource names the owner of the bus in emitted events.
func WithSource(source string) Option {
	return func(b *Bus) { b.source = source }
}

// Bus is an ordered set of listeners. All methods are safe for concurrent
// use; listeners are never called while the bus lock is held.
type Bus struct {
	subs     []*subscription
	paused   int
	pending  bool
	source   string
	observer observability.Observer
	mu       sync.Mutex
}

// New creates an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		source:   "listener",
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe appends fn to the bus. Subscribing the same function twice
// creates two independent subscriptions.
func (b *Bus) Subscribe(fn Listener) Unsubscribe {
	sub := &subscription{
		id: uuid.Must(uuid.NewV7()).String(),
		fn: fn,
	}
	sub.active.Store(true)

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	count := len(b.subs)
	b.mu.Unlock()

	listenersGauge.Inc()
	observability.Emit(context.Background(), b.observer, EventSubscribe, observability.LevelVerbose,
		b.source, "", map[string]any{"subscription_id": sub.id, "listeners": count})

	return func() { b.remove(sub) }
}

func (b *Bus) remove(sub *subscription) {
	if !sub.active.CompareAndSwap(true, false) {
		return
	}

	b.mu.Lock()
	b.subs = slices.DeleteFunc(b.subs, func(s *subscription) bool { return s == sub })
	count := len(b.subs)
	b.mu.Unlock()

	listenersGauge.Dec()
	observability.Emit(context.Background(), b.observer, EventUnsubscribe, observability.LevelVerbose,
		b.source, "", map[string]any{"subscription_id": sub.id, "listeners": count})
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Notify calls every live listener once, in subscription order. While the
// bus is paused the call is recorded and deferred to Resume.
func (b *Bus) Notify() {
	b.mu.Lock()
	if b.paused > 0 {
		b.pending = true
		b.mu.Unlock()
		return
	}
	snapshot := slices.Clone(b.subs)
	b.mu.Unlock()

	for _, sub := range snapshot {
		if !sub.active.Load() {
			continue
		}
		b.call(sub)
	}
}

func (b *Bus) call(sub *subscription) {
	defer func() {
		if r := recover(); r != nil {
			listenerPanicsTotal.WithLabelValues(b.source).Inc()
			observability.Emit(context.Background(), b.observer, EventListenerPanic, observability.LevelError,
				b.source, "", map[string]any{
					"subscription_id": sub.id,
					"panic":           fmt.Sprint(r),
				})
		}
	}()
	sub.fn()
}

// Pause defers notifications until the matching Resume. Calls nest.
func (b *Bus) Pause() {
	b.mu.Lock()
	b.paused++
	b.mu.Unlock()
}

// Resume ends one Pause. When the outermost pause ends and at least one
// Notify arrived in between, listeners are notified once.
func (b *Bus) Resume() {
	b.mu.Lock()
	if b.paused == 0 {
		b.mu.Unlock()
		return
	}
	b.paused--
	fire := b.paused == 0 && b.pending
	if fire {
		b.pending = false
	}
	b.mu.Unlock()

	if fire {
		b.Notify()
	}
}
