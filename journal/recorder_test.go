package journal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/filterkit/component"
	apperrors "github.com/kbukum/filterkit/errors"
	"github.com/kbukum/filterkit/filter"
	"github.com/kbukum/filterkit/lifecycle"
	"github.com/kbukum/filterkit/logger"
	"github.com/kbukum/filterkit/resilience"
)

var errSink = errors.New("sink down")

// memSink stores written batches and fails the first failWrites writes.
type memSink struct {
	mu         sync.Mutex
	batches    [][]Record
	writes     int
	failWrites int
	pingErr    error
	closed     bool
	block      chan struct{}
}

func (s *memSink) Name() string { return "mem" }

func (s *memSink) Write(ctx context.Context, records []Record) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.writes <= s.failWrites {
		return errSink
	}
	s.batches = append(s.batches, append([]Record(nil), records...))
	return nil
}

func (s *memSink) Ping(context.Context) error { return s.pingErr }

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memSink) records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func (s *memSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func testConfig() Config {
	return Config{
		Enabled:       true,
		Buffer:        64,
		BatchSize:     10,
		FlushInterval: 10 * time.Millisecond,
		WriteTimeout:  time.Second,
		Retry:         resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		Breaker:       resilience.CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Hour},
	}
}

func newTestRecorder(t *testing.T, cfg Config, sink *memSink) *Recorder {
	t.Helper()
	r := NewRecorder(cfg, sink, "filterkit-test", logger.Nop())
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return r
}

type testChain struct{}

func (testChain) SessionID() string { return "s1" }
func (testChain) Name() string { return "ingress" }

type testFilter struct {
	filter.Adapter
	label string
}

func (f *testFilter) String() string { return f.label }

func mustStart(t *testing.T, rec *Recorder) {
	t.Helper()
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

func mustStop(t *testing.T, ctx context.Context, rec *Recorder) {
	t.Helper()
	if err := rec.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRecorder_JournalsRegistryTransitions(t *testing.T) {
	ctx := context.Background()
	sink := &memSink{}
	rec := newTestRecorder(t, testConfig(), sink)
	mustStart(t, rec)

	reg := lifecycle.New(lifecycle.WithLogger(logger.Nop()), lifecycle.WithObserver(rec))
	f := &testFilter{label: "auth"}
	if err := reg.InitIfNecessary(ctx, f); err != nil {
		t.Fatalf("InitIfNecessary failed: %v", err)
	}
	if err := reg.OnPreAdd(ctx, testChain{}, "auth", f, nil); err != nil {
		t.Fatalf("OnPreAdd failed: %v", err)
	}
	if err := reg.OnPostAdd(ctx, testChain{}, "auth", f, nil); err != nil {
		t.Fatalf("OnPostAdd failed: %v", err)
	}
	mustStop(t, ctx, rec)

	got := sink.records()
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, kind := range []string{"init", "acquire", "commit"} {
		if got[i].Kind != kind {
			t.Errorf("record %d kind = %q, want %q", i, got[i].Kind, kind)
		}
		if got[i].Seq != uint64(i+1) {
			t.Errorf("record %d seq = %d, want %d", i, got[i].Seq, i+1)
		}
		if got[i].Service != "filterkit-test" {
			t.Errorf("record %d service = %q", i, got[i].Service)
		}
	}
	if got[1].SessionID != "s1" || got[1].Name != "auth" {
		t.Errorf("acquire record = %+v", got[1])
	}
	if got[2].RefCount != 1 {
		t.Errorf("commit ref count = %d, want 1", got[2].RefCount)
	}
	if !sink.closed {
		t.Error("expected sink to be closed on stop")
	}
	if st := rec.Stats(); st != (Stats{Written: 3}) {
		t.Errorf("stats = %+v", st)
	}
}

func TestRecorder_FlushesOnBatchSizeAndInterval(t *testing.T) {
	ctx := context.Background()
	sink := &memSink{}
	cfg := testConfig()
	cfg.BatchSize = 2
	cfg.FlushInterval = 20 * time.Millisecond
	rec := newTestRecorder(t, cfg, sink)
	mustStart(t, rec)
	defer rec.Stop(ctx) //nolint:errcheck

	for range 5 {
		rec.OnTransition(ctx, lifecycle.Transition{Kind: lifecycle.TransitionAcquire, Filter: "f"})
	}
	waitFor(t, "5 records", func() bool { return len(sink.records()) == 5 })
	if n := sink.batchCount(); n < 3 {
		t.Errorf("expected at least 3 batches, got %d", n)
	}
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	ctx := context.Background()
	sink := &memSink{}
	cfg := testConfig()
	cfg.Buffer = 2
	rec := newTestRecorder(t, cfg, sink)

	for range 5 {
		rec.OnTransition(ctx, lifecycle.Transition{Kind: lifecycle.TransitionInit, Filter: "f"})
	}
	if d := rec.Stats().Dropped; d != 3 {
		t.Errorf("dropped = %d, want 3", d)
	}

	mustStart(t, rec)
	mustStop(t, ctx, rec)

	got := sink.records()
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Errorf("seqs = %d, %d, want 1, 2", got[0].Seq, got[1].Seq)
	}
}

func TestRecorder_RetriesFailedWrites(t *testing.T) {
	ctx := context.Background()
	sink := &memSink{failWrites: 1}
	cfg := testConfig()
	cfg.Breaker.MaxFailures = 5
	rec := newTestRecorder(t, cfg, sink)
	mustStart(t, rec)

	rec.OnTransition(ctx, lifecycle.Transition{Kind: lifecycle.TransitionFailure, Err: errors.New("hook broke")})
	mustStop(t, ctx, rec)

	got := sink.records()
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Error != "hook broke" {
		t.Errorf("error = %q", got[0].Error)
	}
	if st := rec.Stats(); st != (Stats{Written: 1}) {
		t.Errorf("stats = %+v", st)
	}
}

func TestRecorder_BreakerOpensAndDegradesHealth(t *testing.T) {
	ctx := context.Background()
	sink := &memSink{failWrites: 1000}
	rec := newTestRecorder(t, testConfig(), sink)
	mustStart(t, rec)

	rec.OnTransition(ctx, lifecycle.Transition{Kind: lifecycle.TransitionInit, Filter: "f"})
	waitFor(t, "first failed batch", func() bool { return rec.Stats().Failed == 1 })

	h := rec.Health(ctx)
	if h.Status != component.StatusDegraded || !strings.Contains(h.Message, "breaker open") {
		t.Errorf("unexpected health: %+v", h)
	}

	rec.OnTransition(ctx, lifecycle.Transition{Kind: lifecycle.TransitionDestroy, Filter: "f"})
	mustStop(t, ctx, rec)

	sink.mu.Lock()
	writes := sink.writes
	sink.mu.Unlock()
	if writes != 2 {
		t.Errorf("open breaker must reject writes without calling the sink: %d writes", writes)
	}
	if f := rec.Stats().Failed; f != 2 {
		t.Errorf("failed = %d, want 2", f)
	}
}

func TestRecorder_StartFailsWhenSinkUnreachable(t *testing.T) {
	sink := &memSink{pingErr: errSink}
	rec := newTestRecorder(t, testConfig(), sink)

	err := rec.Start(context.Background())
	if !errors.Is(err, errSink) {
		t.Fatalf("expected errSink, got %v", err)
	}
	if !apperrors.HasCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Errorf("expected %s, got %v", apperrors.ErrCodeServiceUnavailable, err)
	}
	if st := rec.Health(context.Background()).Status; st != component.StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", st)
	}
}

func TestRecorder_StartTwice(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecorder(t, testConfig(), &memSink{})
	mustStart(t, rec)
	if err := rec.Start(ctx); err == nil {
		t.Error("second start must fail")
	}
	mustStop(t, ctx, rec)
	mustStop(t, ctx, rec)
}

func TestRecorder_StopAbandonsWritesAfterDeadline(t *testing.T) {
	sink := &memSink{block: make(chan struct{})}
	rec := newTestRecorder(t, testConfig(), sink)
	mustStart(t, rec)

	rec.OnTransition(context.Background(), lifecycle.Transition{Kind: lifecycle.TransitionInit, Filter: "f"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- rec.Stop(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after its deadline")
	}
	if f := rec.Stats().Failed; f != 1 {
		t.Errorf("failed = %d, want 1", f)
	}
}

func TestRecorder_Health(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecorder(t, testConfig(), &memSink{})
	if rec.Name() != "journal" {
		t.Errorf("name = %q", rec.Name())
	}
	if st := rec.Health(ctx).Status; st != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", st)
	}

	mustStart(t, rec)
	h := rec.Health(ctx)
	if h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s", h.Status)
	}
	if want := "mem: 0 written, 0 dropped, 0 failed, breaker closed"; h.Message != want {
		t.Errorf("message = %q, want %q", h.Message, want)
	}
	mustStop(t, ctx, rec)
}
