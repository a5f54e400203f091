package journal

import (
	"time"

	"github.com/kbukum/filterkit/lifecycle"
)

// Record is one journaled lifecycle transition.
type Record struct {
	Seq       uint64    `json:"seq"`
	Service   string    `json:"service"`
	Kind      string    `json:"kind"`
	Operation string    `json:"operation"`
	Filter    string    `json:"filter"`
	SessionID string    `json:"session_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	RefCount  int       `json:"ref_count"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// NewRecord converts a transition into a record.
func NewRecord(seq uint64, service string, t lifecycle.Transition, at time.Time) Record {
	r := Record{
		Seq:       seq,
		Service:   service,
		Kind:      string(t.Kind),
		Operation: t.Operation,
		Filter:    t.Filter,
		SessionID: t.SessionID,
		Name:      t.Name,
		RefCount:  t.Count,
		Time:      at.UTC(),
	}
	if t.Err != nil {
		r.Error = t.Err.Error()
	}
	return r
}
