package transport

import "github.com/tailored-agentic-units/storekit/observability"

// EventRequest is emitted once per handled call.
const EventRequest observability.EventType = "transport.request"
