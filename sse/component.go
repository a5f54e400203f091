package sse

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/filterkit/component"
	"github.com/kbukum/filterkit/logger"
)

const componentName = "event-feed"

// Component runs a Hub under the component registry and exposes a Feed
// for the lifecycle registry.
type Component struct {
	hub     *Hub
	feed    *Feed
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a component with a fresh Hub.
func NewComponent(log *logger.Logger) *Component {
	hub := NewHub(log)
	return &Component{hub: hub, feed: NewFeed(hub)}
}

// Hub returns the underlying Hub.
func (c *Component) Hub() *Hub { return c.hub }

// Feed returns the lifecycle observer publishing to the hub.
func (c *Component) Feed() *Feed { return c.feed }

// Name returns the component name.
func (c *Component) Name() string { return componentName }

// Start launches the Hub's event loop in a background goroutine.
func (c *Component) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("%s already started", componentName)
	}
	if c.hub.Stopped() {
		return fmt.Errorf("%s cannot be restarted", componentName)
	}
	c.running = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()
	return nil
}

// Stop signals the Hub to shut down and waits for Run to return.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hub.Stop()
	c.wg.Wait()
	c.running = false
	return nil
}

// Health reports the connected clients and dropped events.
func (c *Component) Health(_ context.Context) component.Health {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()

	published, dropped := c.hub.Stats()
	h := component.Health{
		Name:    componentName,
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d clients connected, %d events published, %d dropped", c.hub.ClientCount(), published, dropped),
	}
	if !running {
		h.Status = component.StatusUnhealthy
		h.Message = "not running"
	}
	return h
}
