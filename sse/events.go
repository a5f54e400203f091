package sse

// SSE event types.
const (
	// EventTypeConnected is sent when a client successfully connects.
	EventTypeConnected = "connected"

	// EventTypeTransition carries one lifecycle transition.
	EventTypeTransition = "transition"
)

// MatchAll subscribes a client to every topic.
const MatchAll = "*"
