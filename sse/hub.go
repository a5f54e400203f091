package sse

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/kbukum/filterkit/logger"
)

const (
	clientBuffer    = 256
	broadcastBuffer = 1024
)

// Event is one message queued for a client.
type Event struct {
	Type string
	Data []byte
}

// Client represents a connected SSE client.
type Client struct {
	id      string
	pattern string
	events  chan Event
}

// NewClient creates a client subscribed to topics matching pattern.
// An empty pattern subscribes to everything.
func NewClient(id, pattern string) *Client {
	if pattern == "" {
		pattern = MatchAll
	}
	return &Client{
		id:      id,
		pattern: pattern,
		events:  make(chan Event, clientBuffer),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string {
	return c.id
}

// Pattern returns the client's topic pattern.
func (c *Client) Pattern() string {
	return c.pattern
}

// Events returns the channel for receiving events.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Send queues ev for the client. Returns false if the client is too slow
// and its buffer is full.
func (c *Client) Send(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// Close closes the client's event channel.
func (c *Client) Close() {
	close(c.events)
}

// Matches reports whether the client subscribes to topic.
func (c *Client) Matches(topic string) bool {
	ok, err := filepath.Match(c.pattern, topic)
	return err == nil && ok
}

// ValidPattern reports whether pattern is a well-formed glob.
func ValidPattern(pattern string) bool {
	_, err := filepath.Match(pattern, "")
	return err == nil
}

type message struct {
	topic string
	event Event
}

// Hub manages SSE client connections and message broadcasting.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	stopped    bool
	mu         sync.RWMutex
	log        *logger.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates a new SSE hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Get("sse")
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, broadcastBuffer),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main event loop. It blocks until Stop is called and
// should be run in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("SSE client registered", logger.Fields("client_id", client.id, "pattern", client.pattern, "total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("SSE client unregistered", logger.Fields("client_id", client.id, "total_clients", total))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Stop signals the hub to shut down. It closes all client connections
// and causes Run to return. Safe to call multiple times.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

// Stopped reports whether Stop has been called. A stopped hub cannot run again.
func (h *Hub) Stopped() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stopped
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.Close()
		delete(h.clients, id)
	}
}

// Register adds a client to the hub. Returns false if the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues an event for every client whose pattern matches topic.
// It never blocks: when the hub is backed up the event is dropped.
func (h *Hub) Publish(topic, eventType string, data []byte) {
	select {
	case h.broadcast <- message{topic: topic, event: Event{Type: eventType, Data: data}}:
		h.published.Add(1)
	default:
		h.dropped.Add(1)
	}
}

// deliver runs on the hub goroutine.
func (h *Hub) deliver(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.clients {
		if !client.Matches(msg.topic) {
			continue
		}
		if !client.Send(msg.event) {
			h.dropped.Add(1)
			h.log.Warn("SSE client buffer full, dropping event", logger.Fields("client_id", id, "topic", msg.topic))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client returns a client by ID, or nil if not found.
func (h *Hub) Client(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

// Stats returns how many events were accepted and how many were dropped.
func (h *Hub) Stats() (published, dropped uint64) {
	return h.published.Load(), h.dropped.Load()
}

var _ Publisher = (*Hub)(nil)
