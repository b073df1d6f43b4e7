package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/webitel/im-signaling-service/internal/domain/call"
	"github.com/webitel/im-signaling-service/internal/domain/event"
	"github.com/webitel/im-signaling-service/internal/domain/model"
	"github.com/webitel/im-signaling-service/internal/domain/registry"
	"github.com/webitel/im-signaling-service/internal/domain/room"
)

type fixture struct {
	hub       *registry.Hub
	rooms     *room.Directory
	calls     *call.Tracker
	lifecycle *Lifecycle
	router    *Router
	exporter  *fakeExporter
	recorder  *fakeRecorder
}

func newFixture(t *testing.T, opts ...RouterOption) *fixture {
	t.Helper()
	return newFixtureWithHub(t, registry.NewHub(registry.WithSendTimeout(0)), opts...)
}

func newFixtureWithHub(t *testing.T, hub *registry.Hub, opts ...RouterOption) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	f := &fixture{
		hub:      hub,
		rooms:    room.NewDirectory(),
		calls:    call.NewTracker(),
		exporter: &fakeExporter{},
		recorder: &fakeRecorder{},
	}
	f.lifecycle = NewLifecycle(f.hub, f.rooms, logger)

	opts = append([]RouterOption{
		WithLogger(logger),
		WithExporter(f.exporter),
		WithRecorder(f.recorder),
	}, opts...)
	f.router = NewRouter(f.hub, f.rooms, f.calls, f.lifecycle, opts...)
	return f
}

// connect opens an anonymous connection.
func (f *fixture) connect() model.Connector {
	return f.lifecycle.Connect(context.Background(), model.ConnectMetadata{Transport: "test"})
}

// join opens a connection and joins the room of sender and receiver.
func (f *fixture) join(t *testing.T, sender, receiver any) model.Connector {
	t.Helper()
	c := f.connect()
	if err := f.router.Dispatch(context.Background(), c, model.EventJoinRoom, map[string]any{
		"senderId":   sender,
		"receiverId": receiver,
	}); err != nil {
		t.Fatalf("join room: %v", err)
	}
	return c
}

// drain returns every event queued on c.
func drain(c model.Connector) []event.Eventer {
	var res []event.Eventer
	for {
		ev, ok := c.Next()
		if !ok {
			return res
		}
		res = append(res, ev)
	}
}

func names(evs []event.Eventer) []string {
	res := make([]string, 0, len(evs))
	for _, ev := range evs {
		res = append(res, ev.GetName())
	}
	return res
}

type fakeExporter struct {
	mu     sync.Mutex
	events []event.Eventer
	err    error
}

func (e *fakeExporter) Publish(_ context.Context, ev event.Eventer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

func (e *fakeExporter) published() []event.Eventer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]event.Eventer(nil), e.events...)
}

type fakeRecorder struct {
	mu        sync.Mutex
	routed    map[string]int
	fallbacks map[string]int
	rejected  map[string]int
}

func (r *fakeRecorder) EventRouted(family string, delivered int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.routed == nil {
		r.routed = map[string]int{}
	}
	r.routed[family] += delivered
}

func (r *fakeRecorder) FallbackApplied(policy string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fallbacks == nil {
		r.fallbacks = map[string]int{}
	}
	r.fallbacks[policy]++
}

func (r *fakeRecorder) DispatchRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejected == nil {
		r.rejected = map[string]int{}
	}
	r.rejected[reason]++
}
