package store

import "github.com/tailored-agentic-units/storekit/observability"

const (
	EventDispatch            observability.EventType = "store.dispatch"
	EventResolutionStart     observability.EventType = "store.resolution.start"
	EventResolutionFinish    observability.EventType = "store.resolution.finish"
	EventResolutionFulfilled observability.EventType = "store.resolution.fulfilled"
	EventResolutionError     observability.EventType = "store.resolution.error"
)
