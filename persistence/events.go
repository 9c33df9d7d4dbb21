package persistence

import "github.com/tailored-agentic-units/storekit/observability"

// Persistence event types.
const (
	EventRestore     observability.EventType = "persistence.restore"
	EventRecord      observability.EventType = "persistence.record"
	EventFlush       observability.EventType = "persistence.flush"
	EventForget      observability.EventType = "persistence.forget"
	EventEncodeError observability.EventType = "persistence.encode.error"
)
