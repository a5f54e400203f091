package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/filterkit/component"
	apperrors "github.com/kbukum/filterkit/errors"
	"github.com/kbukum/filterkit/lifecycle"
	"github.com/kbukum/filterkit/logger"
	"github.com/kbukum/filterkit/resilience"
)

const componentName = "journal"

// Stats counts records by outcome.
type Stats struct {
	Written uint64
	Dropped uint64
	Failed  uint64
}

// Recorder queues lifecycle transitions and writes them to a Sink in the
// background.
type Recorder struct {
	cfg     Config
	sink    Sink
	service string
	log     *logger.Logger
	breaker *resilience.CircuitBreaker
	now     func() time.Time

	queue   chan Record
	seq     atomic.Uint64
	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
}

var (
	_ component.Component = (*Recorder)(nil)
	_ lifecycle.Observer  = (*Recorder)(nil)
)

// NewRecorder creates a recorder writing to sink. Transitions observed
// before Start are buffered.
func NewRecorder(cfg Config, sink Sink, service string, log *logger.Logger) *Recorder {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	r := &Recorder{
		cfg:     cfg,
		sink:    sink,
		service: service,
		log:     log,
		now:     time.Now,
		queue:   make(chan Record, cfg.Buffer),
	}
	breaker := cfg.Breaker
	breaker.OnStateChange = func(name string, from, to resilience.State) {
		r.log.Warn("journal circuit breaker state changed", logger.Fields(
			"breaker", name, "sink", sink.Name(), "from", from.String(), "to", to.String()))
	}
	r.breaker = resilience.NewCircuitBreaker(breaker)
	return r
}

// OnTransition enqueues t without blocking. The record is dropped when the
// queue is full.
func (r *Recorder) OnTransition(_ context.Context, t lifecycle.Transition) {
	rec := NewRecord(r.seq.Add(1), r.service, t, r.now())
	select {
	case r.queue <- rec:
	default:
		if r.dropped.Add(1) == 1 {
			r.log.Warn("journal queue full, dropping transitions", logger.Fields("buffer", r.cfg.Buffer))
		}
	}
}

// Name returns the component name.
func (r *Recorder) Name() string { return componentName }

// Start checks the sink and launches the writer.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("%s already started", componentName)
	}

	pingCtx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()
	if err := r.sink.Ping(pingCtx); err != nil {
		return apperrors.ServiceUnavailable(componentName + " " + r.sink.Name()).WithCause(err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	r.cancel = runCancel
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.running = true
	go r.run(runCtx, r.stop, r.done)

	r.log.Info("journal started", logger.Fields(
		"sink", r.sink.Name(), "batch_size", r.cfg.BatchSize, "flush_interval", r.cfg.FlushInterval.String()))
	return nil
}

// Stop flushes queued records and closes the sink. Writes still pending
// when ctx ends are abandoned.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}
	r.running = false

	close(r.stop)
	select {
	case <-r.done:
	case <-ctx.Done():
		r.cancel()
		<-r.done
	}
	r.cancel()

	s := r.Stats()
	r.log.Info("journal stopped", logger.Fields("written", s.Written, "dropped", s.Dropped, "failed", s.Failed))
	if err := r.sink.Close(); err != nil {
		return fmt.Errorf("%s: close %s: %w", componentName, r.sink.Name(), err)
	}
	return nil
}

// Stats returns the record counters.
func (r *Recorder) Stats() Stats {
	return Stats{Written: r.written.Load(), Dropped: r.dropped.Load(), Failed: r.failed.Load()}
}

// Health is degraded while the circuit breaker is not closed.
func (r *Recorder) Health(_ context.Context) component.Health {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()

	s := r.Stats()
	state := r.breaker.State()
	msg := fmt.Sprintf("%s: %d written, %d dropped, %d failed, breaker %s",
		r.sink.Name(), s.Written, s.Dropped, s.Failed, state)
	h := component.Health{Name: componentName, Status: component.StatusHealthy, Message: msg}
	switch {
	case !running:
		h.Status = component.StatusUnhealthy
		h.Message = "not running"
	case state != resilience.StateClosed:
		h.Status = component.StatusDegraded
	}
	return h
}

func (r *Recorder) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, r.cfg.BatchSize)
	for {
		select {
		case rec := <-r.queue:
			batch = append(batch, rec)
			if len(batch) >= r.cfg.BatchSize {
				batch = r.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = r.flush(ctx, batch)
		case <-stop:
			for {
				select {
				case rec := <-r.queue:
					batch = append(batch, rec)
					if len(batch) >= r.cfg.BatchSize {
						batch = r.flush(ctx, batch)
					}
				default:
					r.flush(ctx, batch)
					return
				}
			}
		}
	}
}

// flush writes batch and returns it emptied for reuse.
func (r *Recorder) flush(ctx context.Context, batch []Record) []Record {
	if len(batch) == 0 {
		return batch
	}

	retry := r.cfg.Retry
	retry.RetryIf = func(err error) bool {
		return ctx.Err() == nil && !errors.Is(err, resilience.ErrCircuitOpen)
	}
	err := resilience.Retry(ctx, retry, func(ctx context.Context) error {
		return r.breaker.Execute(ctx, func(ctx context.Context) error {
			wctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
			defer cancel()
			return r.sink.Write(wctx, batch)
		})
	})

	if err != nil {
		r.failed.Add(uint64(len(batch)))
		r.log.Error("journal write failed", logger.MergeWithError(logger.Fields(
			"sink", r.sink.Name(), "records", len(batch), "first_seq", batch[0].Seq), err))
	} else {
		r.written.Add(uint64(len(batch)))
		r.log.Debug("journal batch written", logger.Fields("sink", r.sink.Name(), "records", len(batch)))
	}
	return batch[:0]
}
