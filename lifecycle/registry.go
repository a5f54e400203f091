package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/filterkit/component"
	"github.com/kbukum/filterkit/filter"
	"github.com/kbukum/filterkit/logger"
)

const tracerName = "github.com/kbukum/filterkit/lifecycle"

// HealthName is the component name reported by Registry.Health.
const HealthName = "filter-lifecycle"

// Registry tracks which filters are initialized and how many chains hold
// each of them. Filters are keyed by pointer identity: the same instance
// shared by many chains is one entry, two distinct instances are always
// two entries.
//
// An entry exists if and only if its filter has been initialized and not
// yet destroyed.
type Registry struct {
	mu        sync.Mutex
	entries   map[filter.Filter]*refCount
	log       *logger.Logger
	tracer    trace.Tracer
	observers []Observer
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[filter.Filter]*refCount),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get("lifecycle")
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	return r
}

// InitIfNecessary initializes f unless it is already registered. On the
// first call it creates a zero count entry and invokes f.Init; later calls
// are no-ops. If Init fails the entry is removed again, so a subsequent
// call retries Init.
func (r *Registry) InitIfNecessary(ctx context.Context, f filter.Filter) error {
	if !filter.HasIdentity(f) {
		return invalidFilter(OpInit, f)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[f]; ok {
		return nil
	}

	r.entries[f] = &refCount{}
	if err := r.invoke(ctx, OpInit, f, nil, f.Init); err != nil {
		delete(r.entries, f)
		return r.fail(ctx, OpInit, f, nil, -1, err)
	}

	r.log.Debug("Filter initialized", logger.Fields(
		logger.FieldOperation, OpInit,
		logger.FieldFilter, filter.Describe(f),
	))
	r.notify(ctx, Transition{Kind: TransitionInit, Operation: OpInit, Filter: filter.Describe(f), Count: 0})
	return nil
}

// OnPreAdd takes a reference on f for chain and invokes f.OnPreAdd. The
// filter must already be registered; otherwise an illegal-state error is
// returned and the hook is not called. If the hook fails the reference is
// given back before the error is returned.
func (r *Registry) OnPreAdd(ctx context.Context, chain filter.Chain, name string, f filter.Filter, next filter.NextFilter) error {
	in := &installation{chain: chain, name: name, next: next}
	if !filter.HasIdentity(f) {
		return invalidFilter(OpPreAdd, f)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[f]
	if !ok {
		return r.illegal(ctx, OpPreAdd, f, in)
	}

	count := c.inc()
	err := r.invoke(ctx, OpPreAdd, f, in, func(ctx context.Context) error {
		return f.OnPreAdd(ctx, chain, name, next)
	})
	if err != nil {
		count = c.dec()
		r.rolledBack(ctx, OpPreAdd, f, in, count)
		return r.fail(ctx, OpPreAdd, f, in, count, err)
	}

	r.log.Debug("Filter reference acquired", in.fields(OpPreAdd, f), logger.Fields(logger.FieldRefCount, count))
	r.notify(ctx, r.transition(TransitionAcquire, OpPreAdd, f, in, count, nil))
	return nil
}

// OnPostAdd invokes f.OnPostAdd, committing the attachment begun by
// OnPreAdd. If the hook fails the reference taken by OnPreAdd is released
// before the error is returned.
func (r *Registry) OnPostAdd(ctx context.Context, chain filter.Chain, name string, f filter.Filter, next filter.NextFilter) error {
	in := &installation{chain: chain, name: name, next: next}
	if !filter.HasIdentity(f) {
		return invalidFilter(OpPostAdd, f)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[f]
	if !ok {
		return r.illegal(ctx, OpPostAdd, f, in)
	}

	err := r.invoke(ctx, OpPostAdd, f, in, func(ctx context.Context) error {
		return f.OnPostAdd(ctx, chain, name, next)
	})
	if err != nil {
		count := c.dec()
		r.rolledBack(ctx, OpPostAdd, f, in, count)
		return r.fail(ctx, OpPostAdd, f, in, count, err)
	}

	r.notify(ctx, r.transition(TransitionCommit, OpPostAdd, f, in, c.value(), nil))
	return nil
}

// OnPreRemove invokes f.OnPreRemove. It is a no-op when f is not
// registered or holds no references. A hook failure leaves the count
// untouched.
func (r *Registry) OnPreRemove(ctx context.Context, chain filter.Chain, name string, f filter.Filter, next filter.NextFilter) error {
	in := &installation{chain: chain, name: name, next: next}
	if !filter.HasIdentity(f) {
		return invalidFilter(OpPreRemove, f)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[f]
	if !ok || c.value() == 0 {
		return nil
	}

	err := r.invoke(ctx, OpPreRemove, f, in, func(ctx context.Context) error {
		return f.OnPreRemove(ctx, chain, name, next)
	})
	if err != nil {
		return r.fail(ctx, OpPreRemove, f, in, c.value(), err)
	}
	return nil
}

// OnPostRemove invokes f.OnPostRemove and releases one reference. The
// release happens exactly once whether the hook succeeds or fails; a hook
// failure is still returned. It is a no-op when f is not registered or
// holds no references.
func (r *Registry) OnPostRemove(ctx context.Context, chain filter.Chain, name string, f filter.Filter, next filter.NextFilter) (err error) {
	in := &installation{chain: chain, name: name, next: next}
	if !filter.HasIdentity(f) {
		return invalidFilter(OpPostRemove, f)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[f]
	if !ok || c.value() == 0 {
		return nil
	}

	defer r.release(ctx, f, in, c)

	err = r.invoke(ctx, OpPostRemove, f, in, func(ctx context.Context) error {
		return f.OnPostRemove(ctx, chain, name, next)
	})
	if err != nil {
		// The release is still pending here, so report the count it will leave.
		return r.fail(ctx, OpPostRemove, f, in, c.value()-1, err)
	}
	return nil
}

// DestroyIfNecessary destroys f once no chain holds it. It is a no-op when
// f is not registered or its count is above zero. The entry is removed
// before f.Destroy runs, so even a failed Destroy leaves f unregistered and
// a later InitIfNecessary re-runs Init.
func (r *Registry) DestroyIfNecessary(ctx context.Context, f filter.Filter) error {
	if !filter.HasIdentity(f) {
		return invalidFilter(OpDestroy, f)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[f]
	if !ok || c.value() > 0 {
		return nil
	}

	delete(r.entries, f)
	if err := r.invoke(ctx, OpDestroy, f, nil, f.Destroy); err != nil {
		return r.fail(ctx, OpDestroy, f, nil, -1, err)
	}

	r.log.Debug("Filter destroyed", logger.Fields(
		logger.FieldOperation, OpDestroy,
		logger.FieldFilter, filter.Describe(f),
	))
	r.notify(ctx, Transition{Kind: TransitionDestroy, Operation: OpDestroy, Filter: filter.Describe(f), Count: -1})
	return nil
}

// --- introspection ---

// EntryInfo is a point-in-time view of one registered filter.
type EntryInfo struct {
	Filter   string `json:"filter"`
	Type     string `json:"type"`
	RefCount int    `json:"ref_count"`
}

// Count returns the reference count of f and whether f is registered.
func (r *Registry) Count(f filter.Filter) (int, bool) {
	if !filter.HasIdentity(f) {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[f]
	if !ok {
		return 0, false
	}
	return c.value(), true
}

// Registered reports whether f is initialized and not yet destroyed.
func (r *Registry) Registered(f filter.Filter) bool {
	_, ok := r.Count(f)
	return ok
}

// Len returns the number of registered filters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns every registered filter ordered by description.
func (r *Registry) Snapshot() []EntryInfo {
	r.mu.Lock()
	out := make([]EntryInfo, 0, len(r.entries))
	for f, c := range r.entries {
		out = append(out, EntryInfo{
			Filter:   filter.Describe(f),
			Type:     fmt.Sprintf("%T", f),
			RefCount: c.value(),
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Filter < out[j].Filter })
	return out
}

// Health reports the registry as a component. The registry has no failure
// mode of its own, so it is always healthy; the message summarizes its size.
func (r *Registry) Health(_ context.Context) component.Health {
	r.mu.Lock()
	filters, refs := len(r.entries), 0
	for _, c := range r.entries {
		refs += c.value()
	}
	r.mu.Unlock()

	return component.Health{
		Name:    HealthName,
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d filters registered, %d installations", filters, refs),
	}
}

// --- internal helpers; all run with r.mu held ---

// invoke runs hook inside a span and converts a panic into an error so the
// caller's compensation always runs.
func (r *Registry) invoke(ctx context.Context, op string, f filter.Filter, in *installation, hook func(context.Context) error) (err error) {
	attrs := []attribute.KeyValue{
		attribute.String("filter.operation", op),
		attribute.String("filter.description", filter.Describe(f)),
	}
	if in != nil {
		attrs = append(attrs,
			attribute.String("filter.name", in.name),
			attribute.String("session.id", in.sessionID()),
		)
	}
	ctx, span := r.tracer.Start(ctx, "filter."+op, trace.WithAttributes(attrs...))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in %s: %v", op, p)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return hook(ctx)
}

func (r *Registry) release(ctx context.Context, f filter.Filter, in *installation, c *refCount) {
	count := c.dec()
	r.log.Debug("Filter reference released", in.fields(OpPostRemove, f), logger.Fields(logger.FieldRefCount, count))
	r.notify(ctx, r.transition(TransitionRelease, OpPostRemove, f, in, count, nil))
}

func (r *Registry) rolledBack(ctx context.Context, op string, f filter.Filter, in *installation, count int) {
	r.log.Warn("Filter reference rolled back", in.fields(op, f), logger.Fields(logger.FieldRefCount, count))
	r.notify(ctx, r.transition(TransitionRollback, op, f, in, count, nil))
}

func (r *Registry) fail(ctx context.Context, op string, f filter.Filter, in *installation, count int, cause error) error {
	r.log.Error("Filter lifecycle hook failed", logger.MergeWithError(in.fields(op, f), cause))
	r.notify(ctx, r.transition(TransitionFailure, op, f, in, count, cause))
	return hookError(op, f, in, cause)
}

func (r *Registry) illegal(ctx context.Context, op string, f filter.Filter, in *installation) error {
	err := notInitialized(op, f, in)
	r.log.Error("Filter lifecycle protocol violated", logger.MergeWithError(in.fields(op, f), err))
	return err
}

func (r *Registry) transition(kind TransitionKind, op string, f filter.Filter, in *installation, count int, err error) Transition {
	return Transition{
		Kind:      kind,
		Operation: op,
		Filter:    filter.Describe(f),
		SessionID: in.sessionID(),
		Name:      in.filterName(),
		Count:     count,
		Err:       err,
	}
}

func (r *Registry) notify(ctx context.Context, t Transition) {
	for _, o := range r.observers {
		o.OnTransition(ctx, t)
	}
}
