package sse

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kbukum/filterkit/lifecycle"
)

// TransitionEvent is the JSON payload of a transition event.
type TransitionEvent struct {
	Kind      lifecycle.TransitionKind `json:"kind"`
	Operation string                   `json:"operation"`
	Filter    string                   `json:"filter"`
	SessionID string                   `json:"session_id,omitempty"`
	Name      string                   `json:"name,omitempty"`
	RefCount  int                      `json:"ref_count"`
	Error     string                   `json:"error,omitempty"`
	Time      time.Time                `json:"time"`
}

// Topic returns the subscription topic of a transition.
func Topic(t lifecycle.Transition) string {
	return string(t.Kind) + ":" + t.Operation
}

// Feed publishes lifecycle transitions.
type Feed struct {
	pub Publisher
	now func() time.Time
}

// NewFeed returns an observer publishing to pub.
func NewFeed(pub Publisher) *Feed {
	return &Feed{pub: pub, now: time.Now}
}

// OnTransition implements lifecycle.Observer.
func (f *Feed) OnTransition(_ context.Context, t lifecycle.Transition) {
	ev := TransitionEvent{
		Kind:      t.Kind,
		Operation: t.Operation,
		Filter:    t.Filter,
		SessionID: t.SessionID,
		Name:      t.Name,
		RefCount:  t.Count,
		Time:      f.now().UTC(),
	}
	if t.Err != nil {
		ev.Error = t.Err.Error()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	f.pub.Publish(Topic(t), EventTypeTransition, data)
}

var _ lifecycle.Observer = (*Feed)(nil)
