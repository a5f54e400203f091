package lifecycle

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/filterkit/filter"
	"github.com/kbukum/filterkit/logger"
)

var errBoom = errors.New("boom")

// recordingFilter counts every hook call and fails the hooks listed in failOn.
// OnPostAdd also fails for installation names ending in failSuffix.
type recordingFilter struct {
	filter.Adapter
	label string

	inits, destroys         atomic.Int32
	preAdds, postAdds       atomic.Int32
	preRemoves, postRemoves atomic.Int32
	failOn                  map[string]error
	panicOn                 string
	failSuffix              string
	maxLatency              time.Duration

	mu    sync.Mutex
	calls []string
}

func newRecordingFilter(label string) *recordingFilter {
	return &recordingFilter{label: label, failOn: map[string]error{}}
}

func (f *recordingFilter) String() string { return f.label }

func (f *recordingFilter) failing(op string, err error) *recordingFilter {
	f.failOn[op] = err
	return f
}

func (f *recordingFilter) hook(op, name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()

	if f.maxLatency > 0 {
		time.Sleep(time.Duration(rand.Int64N(int64(f.maxLatency))))
	}
	if f.panicOn == op {
		panic("hook blew up")
	}
	if op == OpPostAdd && f.failSuffix != "" && strings.HasSuffix(name, f.failSuffix) {
		return errBoom
	}
	return f.failOn[op]
}

func (f *recordingFilter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *recordingFilter) Init(ctx context.Context) error {
	f.inits.Add(1)
	return f.hook(OpInit, "")
}

func (f *recordingFilter) Destroy(ctx context.Context) error {
	f.destroys.Add(1)
	return f.hook(OpDestroy, "")
}

func (f *recordingFilter) OnPreAdd(ctx context.Context, chain filter.Chain, name string, next filter.NextFilter) error {
	f.preAdds.Add(1)
	return f.hook(OpPreAdd, name)
}

func (f *recordingFilter) OnPostAdd(ctx context.Context, chain filter.Chain, name string, next filter.NextFilter) error {
	f.postAdds.Add(1)
	return f.hook(OpPostAdd, name)
}

func (f *recordingFilter) OnPreRemove(ctx context.Context, chain filter.Chain, name string, next filter.NextFilter) error {
	f.preRemoves.Add(1)
	return f.hook(OpPreRemove, name)
}

func (f *recordingFilter) OnPostRemove(ctx context.Context, chain filter.Chain, name string, next filter.NextFilter) error {
	f.postRemoves.Add(1)
	return f.hook(OpPostRemove, name)
}

type fakeChain struct {
	session string
	name    string
}

func (c *fakeChain) SessionID() string { return c.session }
func (c *fakeChain) Name() string { return c.name }

type fakeNext string

func (n fakeNext) Name() string { return string(n) }

func newTestRegistry(opts ...Option) *Registry {
	return New(append([]Option{WithLogger(logger.Nop())}, opts...)...)
}

// attach runs the full attach protocol.
func attach(ctx context.Context, r *Registry, c filter.Chain, name string, f filter.Filter) error {
	if err := r.InitIfNecessary(ctx, f); err != nil {
		return err
	}
	if err := r.OnPreAdd(ctx, c, name, f, fakeNext("tail")); err != nil {
		return err
	}
	return r.OnPostAdd(ctx, c, name, f, fakeNext("tail"))
}

// detach runs the full detach protocol.
func detach(ctx context.Context, r *Registry, c filter.Chain, name string, f filter.Filter) error {
	if err := r.OnPreRemove(ctx, c, name, f, fakeNext("tail")); err != nil {
		return err
	}
	if err := r.OnPostRemove(ctx, c, name, f, fakeNext("tail")); err != nil {
		return err
	}
	return r.DestroyIfNecessary(ctx, f)
}

func mustInit(t *testing.T, r *Registry, f filter.Filter) {
	t.Helper()
	if err := r.InitIfNecessary(context.Background(), f); err != nil {
		t.Fatalf("InitIfNecessary failed: %v", err)
	}
}

func mustAttach(t *testing.T, r *Registry, c filter.Chain, name string, f filter.Filter) {
	t.Helper()
	if err := attach(context.Background(), r, c, name, f); err != nil {
		t.Fatalf("attach %s failed: %v", name, err)
	}
}

// wantCount fails unless f is registered with the given reference count.
func wantCount(t *testing.T, r *Registry, f filter.Filter, want int) {
	t.Helper()
	count, ok := r.Count(f)
	if !ok {
		t.Fatalf("expected %s to be registered", filter.Describe(f))
	}
	if count != want {
		t.Errorf("ref count = %d, want %d", count, want)
	}
}

// transitionLog collects transitions for assertions.
type transitionLog struct {
	mu  sync.Mutex
	all []Transition
}

func (l *transitionLog) OnTransition(_ context.Context, t Transition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, t)
}

func (l *transitionLog) kinds() []TransitionKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TransitionKind, 0, len(l.all))
	for _, t := range l.all {
		out = append(out, t.Kind)
	}
	return out
}
