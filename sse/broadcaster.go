package sse

// Publisher delivers an event to the clients subscribed to its topic.
// Publish must not block.
type Publisher interface {
	Publish(topic, eventType string, data []byte)
}
