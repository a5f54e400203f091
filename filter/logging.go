package filter

import (
	"context"
	"sync/atomic"

	"github.com/kbukum/filterkit/logger"
)

// Logging is a stateless filter that logs its own lifecycle. One instance
// is meant to be shared by every chain in the process.
type Logging struct {
	Adapter

	log      *logger.Logger
	attached atomic.Int64
}

// NewLogging creates a logging filter writing to log, or to the "filter"
// logger when log is nil.
func NewLogging(log *logger.Logger) *Logging {
	if log == nil {
		log = logger.Get("filter")
	}
	return &Logging{log: log}
}

// String implements fmt.Stringer for filter descriptions.
func (l *Logging) String() string { return "logging" }

// Attached returns the number of chains currently holding the filter.
func (l *Logging) Attached() int64 { return l.attached.Load() }

func (l *Logging) Init(ctx context.Context) error {
	l.log.WithContext(ctx).Info("Logging filter initialized")
	return nil
}

func (l *Logging) Destroy(ctx context.Context) error {
	l.log.WithContext(ctx).Info("Logging filter destroyed")
	return nil
}

func (l *Logging) OnPostAdd(ctx context.Context, chain Chain, name string, next NextFilter) error {
	n := l.attached.Add(1)
	l.log.WithContext(ctx).Debug("Logging filter attached", chainFields(chain, name, next), logger.Fields("attached", n))
	return nil
}

func (l *Logging) OnPostRemove(ctx context.Context, chain Chain, name string, next NextFilter) error {
	n := l.attached.Add(-1)
	l.log.WithContext(ctx).Debug("Logging filter detached", chainFields(chain, name, next), logger.Fields("attached", n))
	return nil
}

func chainFields(chain Chain, name string, next NextFilter) map[string]interface{} {
	fields := logger.Fields(logger.FieldName, name, "next", NameOf(next))
	if chain != nil {
		fields[logger.FieldSessionID] = chain.SessionID()
	}
	return fields
}
