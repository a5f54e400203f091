package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/filterkit/component"
	"github.com/kbukum/filterkit/filter"
	"github.com/kbukum/filterkit/lifecycle"
	"github.com/kbukum/filterkit/logger"
)

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logger.Nop())
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestClient_Matches(t *testing.T) {
	tests := []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"", "failure:init", true},
		{"*", "commit:onPostAdd", true},
		{"failure:*", "failure:onPreAdd", true},
		{"failure:*", "commit:onPostAdd", false},
		{"*:onPostAdd", "rollback:onPostAdd", true},
		{"[", "failure:init", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.topic, func(t *testing.T) {
			if got := NewClient("c", tt.pattern).Matches(tt.topic); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.topic, got, tt.want)
			}
		})
	}
	if ValidPattern("[") {
		t.Error("expected '[' to be rejected")
	}
	if !ValidPattern("failure:*") {
		t.Error("expected 'failure:*' to be accepted")
	}
}

func TestClient_Send_BufferFull(t *testing.T) {
	client := NewClient("c", "")
	for i := 0; i < clientBuffer; i++ {
		if !client.Send(Event{Type: EventTypeTransition}) {
			t.Fatalf("send %d failed before buffer was full", i)
		}
	}
	if client.Send(Event{Type: EventTypeTransition}) {
		t.Error("expected send to fail when buffer is full")
	}
}

func TestHub_PublishMatchesPattern(t *testing.T) {
	hub := newRunningHub(t)
	failures := NewClient("failures", "failure:*")
	all := NewClient("all", MatchAll)
	hub.Register(failures)
	hub.Register(all)
	waitFor(t, "clients", func() bool { return hub.ClientCount() == 2 })

	hub.Publish("commit:onPostAdd", EventTypeTransition, []byte(`{"kind":"commit"}`))
	hub.Publish("failure:onPreAdd", EventTypeTransition, []byte(`{"kind":"failure"}`))

	if ev := receive(t, all); string(ev.Data) != `{"kind":"commit"}` {
		t.Errorf("unexpected first event for all: %s", ev.Data)
	}
	if ev := receive(t, all); string(ev.Data) != `{"kind":"failure"}` {
		t.Errorf("unexpected second event for all: %s", ev.Data)
	}
	if ev := receive(t, failures); string(ev.Data) != `{"kind":"failure"}` {
		t.Errorf("unexpected event for failures: %s", ev.Data)
	}
	select {
	case ev := <-failures.Events():
		t.Errorf("failures client got unexpected event %s", ev.Data)
	case <-time.After(20 * time.Millisecond):
	}

	published, dropped := hub.Stats()
	if published != 2 || dropped != 0 {
		t.Errorf("expected 2 published and 0 dropped, got %d and %d", published, dropped)
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub(logger.Nop())
	for i := 0; i < broadcastBuffer+10; i++ {
		hub.Publish("failure:init", EventTypeTransition, nil)
	}
	published, dropped := hub.Stats()
	if published != broadcastBuffer || dropped != 10 {
		t.Errorf("expected %d published and 10 dropped, got %d and %d", broadcastBuffer, published, dropped)
	}
}

func TestHub_UnregisterAndStop(t *testing.T) {
	hub := NewHub(logger.Nop())
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	a := NewClient("a", "")
	b := NewClient("b", "")
	hub.Register(a)
	hub.Register(b)
	hub.Unregister(a)
	waitFor(t, "unregister", func() bool { return hub.ClientCount() == 1 })
	if _, ok := <-a.Events(); ok {
		t.Error("expected unregistered client channel to be closed")
	}

	hub.Stop()
	hub.Stop()
	<-done
	if _, ok := <-b.Events(); ok {
		t.Error("expected client channel to be closed on stop")
	}
	if hub.Register(NewClient("late", "")) {
		t.Error("expected register to fail after stop")
	}
	hub.Unregister(b)
}

func TestHub_ConcurrentPublish(t *testing.T) {
	hub := newRunningHub(t)
	client := NewClient("c", "")
	hub.Register(client)
	waitFor(t, "client", func() bool { return hub.ClientCount() == 1 })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				hub.Publish("commit:onPostAdd", EventTypeTransition, []byte(fmt.Sprintf("%d-%d", i, j)))
			}
		}()
	}
	wg.Wait()
	for i := 0; i < 100; i++ {
		receive(t, client)
	}
}

type recordingPublisher struct {
	topics []string
	events []TransitionEvent
}

func (p *recordingPublisher) Publish(topic, eventType string, data []byte) {
	var ev TransitionEvent
	_ = json.Unmarshal(data, &ev)
	p.topics = append(p.topics, topic)
	p.events = append(p.events, ev)
}

type failingFilter struct {
	filter.Adapter
	label string
}

func (f *failingFilter) String() string { return f.label }

func (f *failingFilter) OnPreAdd(context.Context, filter.Chain, string, filter.NextFilter) error {
	return errors.New("refused")
}

type testChain struct{}

func (testChain) SessionID() string { return "s-1" }
func (testChain) Name() string { return "ingress" }

type tailNext struct{}

func (tailNext) Name() string { return "tail" }

func TestFeed_PublishesTransitions(t *testing.T) {
	pub := &recordingPublisher{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	feed := NewFeed(pub)
	feed.now = func() time.Time { return fixed }

	reg := lifecycle.New(lifecycle.WithLogger(logger.Nop()), lifecycle.WithObserver(feed))
	f := &failingFilter{label: "auth"}
	ctx := context.Background()

	if err := reg.InitIfNecessary(ctx, f); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := reg.OnPreAdd(ctx, testChain{}, "auth", f, tailNext{}); err == nil {
		t.Fatal("expected pre-add failure")
	}

	want := []string{"init:init", "rollback:onPreAdd", "failure:onPreAdd"}
	if strings.Join(pub.topics, ",") != strings.Join(want, ",") {
		t.Fatalf("expected topics %v, got %v", want, pub.topics)
	}
	failure := pub.events[2]
	if failure.Filter != "auth" || failure.SessionID != "s-1" || failure.Name != "auth" {
		t.Errorf("unexpected failure event: %+v", failure)
	}
	if !strings.Contains(failure.Error, "refused") {
		t.Errorf("expected error text, got %q", failure.Error)
	}
	if !failure.Time.Equal(fixed) {
		t.Errorf("expected time %v, got %v", fixed, failure.Time)
	}
}

func TestServeSSE_StreamsTransitions(t *testing.T) {
	comp := NewComponent(logger.Nop())
	if err := comp.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer comp.Stop(context.Background())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeSSE(comp.Hub(), w, r, "client-1", r.URL.Query().Get("match"))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"?match=failure:*", http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if line := lines.Text(); strings.HasPrefix(line, "data: ") || strings.HasPrefix(line, "event: ") {
				return line
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}
	if got := next(); got != "event: connected" {
		t.Fatalf("expected connected event, got %q", got)
	}
	if got := next(); !strings.Contains(got, `"pattern":"failure:*"`) {
		t.Fatalf("unexpected connected payload %q", got)
	}
	waitFor(t, "client", func() bool { return comp.Hub().ClientCount() == 1 })

	reg := lifecycle.New(lifecycle.WithLogger(logger.Nop()), lifecycle.WithObserver(comp.Feed()))
	f := &failingFilter{label: "auth"}
	_ = reg.InitIfNecessary(context.Background(), f)
	_ = reg.OnPreAdd(context.Background(), testChain{}, "auth", f, tailNext{})

	if got := next(); got != "event: transition" {
		t.Fatalf("expected transition event, got %q", got)
	}
	var ev TransitionEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(next(), "data: ")), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Kind != lifecycle.TransitionFailure || ev.Operation != lifecycle.OpPreAdd {
		t.Errorf("expected failure on onPreAdd, got %+v", ev)
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	ctx := context.Background()
	comp := NewComponent(logger.Nop())
	if comp.Name() != "event-feed" {
		t.Errorf("unexpected name %q", comp.Name())
	}
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}

	if err := comp.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := comp.Start(ctx); err == nil {
		t.Error("expected second start to fail")
	}
	if h := comp.Health(ctx); h.Status != component.StatusHealthy || !strings.Contains(h.Message, "0 clients connected") {
		t.Errorf("unexpected health %+v", h)
	}

	if err := comp.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := comp.Start(ctx); err == nil {
		t.Error("expected restart after stop to fail")
	}
}
