// Package observability provides the event model shared by the listener bus,
// stores, and registries. Components emit typed events to an Observer instead
// of logging directly, so a process can route them to slog, metrics, or
// nowhere. Level values align with OpenTelemetry SeverityNumbers.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level represents event severity aligned with OTel SeverityNumber ranges.
type Level int

const (
	LevelVerbose Level = 5  // OTel DEBUG (5-8), maps to slog.LevelDebug
	LevelInfo    Level = 9  // OTel INFO (9-12), maps to slog.LevelInfo
	LevelWarning Level = 13 // OTel WARN (13-16), maps to slog.LevelWarn
	LevelError   Level = 17 // OTel ERROR (17-20), maps to slog.LevelError
)

// String returns the OTel severity text for the level.
func (l Level) String() string {
	switch {
	case l <= 4:
		return "TRACE"
	case l <= 8:
		return "DEBUG"
	case l <= 12:
		return "INFO"
	case l <= 16:
		return "WARN"
	case l <= 20:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// SlogLevel maps this level to the corresponding slog.Level.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType identifies the kind of event. Each package defines its own
// constants (e.g. "store.dispatch", "registry.store.register").
type EventType string

// Event is emitted by stores, buses, and registries. Namespace is the store
// key the event concerns, empty for registry-wide events.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Namespace string
	Data      map[string]any
}

// Observer receives events for logging, tracing, or metrics. Implementations
// must be safe for concurrent use: resolvers emit from their own goroutines.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// NoOpObserver discards every event. Components use it when no observer is
// configured.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}

// OrNoOp returns obs, or NoOpObserver when obs is nil.
func OrNoOp(obs Observer) Observer {
	if obs == nil {
		return NoOpObserver{}
	}
	return obs
}

// Emit stamps and delivers an event.
func Emit(ctx context.Context, obs Observer, typ EventType, level Level, source, namespace string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	obs.OnEvent(ctx, Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Namespace: namespace,
		Data:      data,
	})
}
