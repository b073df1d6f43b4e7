package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/webitel/im-signaling-service/config"
	"github.com/webitel/im-signaling-service/internal/domain/call"
	"github.com/webitel/im-signaling-service/internal/domain/event"
	"github.com/webitel/im-signaling-service/internal/domain/model"
	"github.com/webitel/im-signaling-service/internal/domain/registry"
	"github.com/webitel/im-signaling-service/internal/domain/room"
	"github.com/webitel/im-signaling-service/internal/service/mapper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/webitel/im-signaling-service/internal/service"

// Dispatcher is the single entry point of inbound events, whatever transport
// they arrived on. origin is nil for trusted injections (HTTP bridge, bus).
type Dispatcher interface {
	Dispatch(ctx context.Context, origin model.Connector, name string, data map[string]any) error
}

// Exporter re-publishes exportable events to the message bus.
type Exporter interface {
	Publish(ctx context.Context, ev event.Eventer) error
}

// Recorder receives routing measurements.
type Recorder interface {
	EventRouted(family string, delivered int)
	FallbackApplied(policy string)
	DispatchRejected(reason string)
}

var _ Dispatcher = (*Router)(nil)

// Router resolves the fan-out targets of an inbound event and delivers it.
type Router struct {
	hub       registry.Hubber
	rooms     *room.Directory
	calls     *call.Tracker
	lifecycle Lifecycler

	exporter Exporter
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.Tracer

	// fallback holds the policy for unresolvable recipients; swapped on config reload.
	fallback atomic.Pointer[string]
}

func NewRouter(hub registry.Hubber, rooms *room.Directory, calls *call.Tracker, lifecycle Lifecycler, opts ...RouterOption) *Router {
	r := &Router{
		hub:       hub,
		rooms:     rooms,
		calls:     calls,
		lifecycle: lifecycle,
		recorder:  nopRecorder{},
		logger:    slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer(tracerName),
	}
	policy := config.FallbackBroadcast
	r.fallback.Store(&policy)

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FallbackPolicy returns the active unresolvable-recipient policy.
func (r *Router) FallbackPolicy() string {
	return *r.fallback.Load()
}

// SetFallbackPolicy switches the unresolvable-recipient policy at runtime.
func (r *Router) SetFallbackPolicy(policy string) error {
	switch policy {
	case config.FallbackBroadcast, config.FallbackDrop, config.FallbackReject:
	default:
		return fmt.Errorf("unknown fallback policy %q", policy)
	}
	r.fallback.Store(&policy)
	return nil
}

// Stats aggregates registry, directory and tracker counters.
func (r *Router) Stats() model.HubStats {
	return Snapshot(r.hub, r.rooms, r.calls)
}

func Snapshot(hub registry.Hubber, rooms *room.Directory, calls *call.Tracker) model.HubStats {
	stats := hub.Stats()
	stats.TotalRooms = rooms.Len()
	stats.TrackedCalls = calls.Len()
	return stats
}

// Dispatch routes one inbound event. Delivery is fire-and-forget: an
// unreachable target never fails the call.
func (r *Router) Dispatch(ctx context.Context, origin model.Connector, name string, data map[string]any) (err error) {
	ctx, span := r.tracer.Start(ctx, "router.dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("event.name", name)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.recorder.DispatchRejected(reasonOf(err))
		}
		span.End()
	}()

	in, err := model.NewInboundEvent(name, data)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("event.family", in.Route.Family.String()))

	switch in.Route.Family {
	case model.FamilyLifecycle:
		return r.dispatchLifecycle(origin, in)
	case model.FamilyCall:
		return r.dispatchCall(ctx, origin, in)
	case model.FamilySignal:
		return r.dispatchSignal(ctx, origin, in)
	default:
		return r.dispatchRelay(ctx, origin, in)
	}
}

// [LIFECYCLE] Connection state changes need the connection they act on.
func (r *Router) dispatchLifecycle(origin model.Connector, in *model.InboundEvent) error {
	if origin == nil {
		r.logger.Debug("LIFECYCLE_EVENT_IGNORED: no_origin", "event", in.Name)
		return nil
	}

	switch in.Name {
	case model.EventRegister:
		r.lifecycle.Register(origin, in.UserID)
	case model.EventJoinUserChannel:
		r.lifecycle.JoinUserChannel(origin, in.UserID)
	case model.EventJoinRoom:
		r.lifecycle.JoinRoom(origin, in.SenderID, in.ReceiverID)
	case model.EventLeaveRoom:
		r.lifecycle.LeaveRoom(origin, in.RoomID)
	case model.EventDisconnect:
		r.lifecycle.Disconnect(origin)
	}
	return nil
}

// [PEER_RELAY] Message family and unknown names.
func (r *Router) dispatchRelay(ctx context.Context, origin model.Connector, in *model.InboundEvent) error {
	key, ok := room.Key(in.SenderID, in.ReceiverID)
	if !ok {
		return r.applyFallback(ctx, in, mapper.RelayEvent(in, ""))
	}

	targets := r.rooms.Members(key)
	if in.Route.NotifyReceiver {
		targets = append(targets, r.hub.Lookup(in.ReceiverID)...)
	}
	if in.Route.ExcludeOrigin {
		targets = without(targets, origin)
	}

	r.deliver(ctx, in, mapper.RelayEvent(in, key), targets)
	return nil
}

// [WEBRTC] Signals stay inside a room and never echo to their origin.
// Room resolution order: explicit room id, participant pair, origin's current room.
func (r *Router) dispatchSignal(ctx context.Context, origin model.Connector, in *model.InboundEvent) error {
	key := in.RoomID
	if key != "" {
		if origin != nil && !r.rooms.IsMember(key, origin) {
			return fmt.Errorf("%s to room %s: %w", in.Name, key, model.ErrNotRoomMember)
		}
	} else if k, ok := room.Key(in.SenderID, in.ReceiverID); ok {
		key = k
	} else if origin != nil {
		key = origin.RoomKey()
	}

	if key == "" {
		return r.applyFallback(ctx, in, mapper.RelayEvent(in, ""))
	}

	targets := r.rooms.Members(key)
	if in.Route.ExcludeOrigin {
		targets = without(targets, origin)
	}

	r.deliver(ctx, in, mapper.RelayEvent(in, key), targets)
	return nil
}

// [CALL_STATUS] Transition first, then fan out to every room member, origin
// included, plus the user channels of the call parties.
func (r *Router) dispatchCall(ctx context.Context, origin model.Connector, in *model.InboundEvent) error {
	status, _ := call.StatusOf(in.Name)

	key, _ := room.Key(in.SenderID, in.ReceiverID)
	if key == "" {
		key = in.RoomID
	}

	callID := in.CallID
	if callID == "" && status == call.StatusRinging {
		callID = uuid.NewString()
	}

	c := call.Call{
		ID:         callID,
		Status:     status,
		CallerID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		RoomKey:    key,
	}
	// [STRICT] An untracked transition is only tolerated by the permissive policy.
	if callID != "" || r.calls.Policy() == call.PolicyStrict {
		tracked, err := r.calls.Apply(call.Transition{
			CallID:     callID,
			To:         status,
			CallerID:   in.SenderID,
			ReceiverID: in.ReceiverID,
			RoomKey:    key,
		})
		if err != nil {
			r.logger.Warn("CALL_TRANSITION_REJECTED",
				"call_id", callID,
				"event", in.Name,
				"err", err,
			)
			return err
		}
		c = tracked
	}

	var targets []model.Connector
	if c.RoomKey != "" {
		targets = r.rooms.Members(c.RoomKey)
	}
	if status == call.StatusRinging {
		targets = append(targets, r.hub.Lookup(c.ReceiverID)...)
	} else {
		for _, u := range participants(c, in) {
			targets = append(targets, r.hub.Lookup(u)...)
		}
	}

	ev := mapper.CallEvent(in, c)

	if c.RoomKey == "" && len(targets) == 0 {
		if err := r.applyFallback(ctx, in, ev); err != nil {
			return err
		}
	} else {
		r.deliver(ctx, in, ev, targets)
	}

	r.export(ctx, ev)
	return nil
}

func (r *Router) deliver(ctx context.Context, in *model.InboundEvent, ev event.Eventer, targets []model.Connector) {
	targets = unique(targets)
	delivered := r.hub.Deliver(ev, targets)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("fanout.targets", len(targets)),
		attribute.Int("fanout.delivered", delivered),
	)
	r.recorder.EventRouted(in.Route.Family.String(), delivered)
}

// applyFallback handles an event whose recipients could not be derived.
func (r *Router) applyFallback(ctx context.Context, in *model.InboundEvent, ev event.Eventer) error {
	policy := r.FallbackPolicy()
	r.recorder.FallbackApplied(policy)

	switch policy {
	case config.FallbackDrop:
		r.logger.Debug("EVENT_DROPPED: recipient_unresolved", "event", in.Name)
		return nil
	case config.FallbackReject:
		return fmt.Errorf("%s: %w", in.Name, model.ErrUnresolvableRecipient)
	default:
		// [LEGACY_BROADCAST] Clients filter on their side.
		r.deliver(ctx, in, ev, r.hub.Connections())
		return nil
	}
}

func (r *Router) export(ctx context.Context, ev event.Eventer) {
	if r.exporter == nil {
		return
	}
	exp, ok := ev.(event.Exportable)
	if !ok || exp.GetRoutingKey() == "" {
		return
	}
	// [BEST_EFFORT] The bus is an observer; a failed export never blocks live delivery.
	if err := r.exporter.Publish(ctx, ev); err != nil {
		r.logger.Warn("CALL_EXPORT_FAILED",
			"event", ev.GetName(),
			"routing_key", exp.GetRoutingKey(),
			"err", err,
		)
	}
}

// participants returns the known parties of a call, tracked ones first.
func participants(c call.Call, in *model.InboundEvent) []model.UserID {
	return lo.Uniq(lo.Compact([]model.UserID{c.CallerID, c.ReceiverID, in.SenderID, in.ReceiverID}))
}

// unique drops repeated connections, keeping the first occurrence.
func unique(conns []model.Connector) []model.Connector {
	return lo.UniqBy(conns, func(c model.Connector) uuid.UUID { return c.GetID() })
}

func without(conns []model.Connector, skip model.Connector) []model.Connector {
	if skip == nil {
		return conns
	}
	return lo.Reject(conns, func(c model.Connector, _ int) bool { return c.GetID() == skip.GetID() })
}

func reasonOf(err error) string {
	return strings.ToLower(mapper.ErrorCode(err))
}

type nopRecorder struct{}

func (nopRecorder) EventRouted(string, int) {}
func (nopRecorder) FallbackApplied(string)  {}
func (nopRecorder) DispatchRejected(string) {}
