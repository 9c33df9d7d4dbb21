package registry

import "github.com/tailored-agentic-units/storekit/observability"

// Registry event types.
const (
	EventStoreRegister observability.EventType = "registry.store.register"
	EventStoreReplace  observability.EventType = "registry.store.replace"
	EventStoreRejected observability.EventType = "registry.store.rejected"
	EventLookupMiss    observability.EventType = "registry.lookup.miss"
	EventResolveWait   observability.EventType = "registry.resolve.wait"
	EventPluginUse     observability.EventType = "registry.plugin.use"
)
