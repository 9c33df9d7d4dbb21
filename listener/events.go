package listener

import "github.com/tailored-agentic-units/storekit/observability"

// Bus event types.
const (
	EventSubscribe     observability.EventType = "listener.subscribe"
	EventUnsubscribe   observability.EventType = "listener.unsubscribe"
	EventListenerPanic observability.EventType = "listener.panic"
)
