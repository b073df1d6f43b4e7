package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/webitel/im-signaling-service/config"
	"github.com/webitel/im-signaling-service/internal/domain/call"
	"github.com/webitel/im-signaling-service/internal/domain/event"
	"github.com/webitel/im-signaling-service/internal/domain/model"
	"github.com/webitel/im-signaling-service/internal/domain/registry"
)

func TestRouter_Message_Reaches_Peer_Once_Without_Echo(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	c5 := f.join(t, 5, 9)
	c9 := f.join(t, 9, 5)
	drain(c5)
	drain(c9)

	// When 5 sends a message to 9, who is both a room member and a user channel subscriber
	err := f.router.Dispatch(ctx, c5, "message:new", map[string]any{
		"sender_id":   5,
		"receiver_id": 9,
		"text":        "hi",
	})

	// Then 9 receives it exactly once and 5 gets no echo
	req.NoError(err)
	req.Empty(drain(c5))
	got := drain(c9)
	req.Equal([]string{"message:new"}, names(got))
	payload := got[0].GetPayload().(model.Payload)
	req.Equal("hi", payload["text"])
	req.Equal("5-9", payload["roomId"])
}

func TestRouter_Message_Reaches_Receiver_Outside_Room(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	c5 := f.join(t, 5, 9)

	// Given 9 only listens on its user channel
	c9 := f.connect()
	req.NoError(f.router.Dispatch(ctx, c9, model.EventJoinUserChannel, map[string]any{"userId": 9}))
	drain(c5)

	req.NoError(f.router.Dispatch(ctx, c5, "message:reaction", map[string]any{"senderId": "5", "receiverId": "9"}))

	req.Equal([]string{"message:reaction"}, names(drain(c9)))
	req.Empty(drain(c5))
}

func TestRouter_Dispatch_Does_Not_Alias_Inbound_Data(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	c5 := f.join(t, 5, 9)
	f.join(t, 9, 5)
	data := map[string]any{"sender_id": 5, "receiver_id": 9}

	req.NoError(f.router.Dispatch(context.Background(), c5, "message:new", data))

	req.NotContains(data, "roomId")
}

func TestRouter_Fallback_Policies(t *testing.T) {
	ctx := context.Background()
	// Missing receiver: no room can be derived.
	data := map[string]any{"sender_id": 5, "text": "?"}

	t.Run("broadcast", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		origin := f.connect()
		other := f.connect()

		req.NoError(f.router.Dispatch(ctx, origin, "message:new", data))

		req.Len(drain(other), 1)
		req.Len(drain(origin), 1)
		req.Equal(1, f.recorder.fallbacks[config.FallbackBroadcast])
	})

	t.Run("drop", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t, WithFallbackPolicy(config.FallbackDrop))
		origin := f.connect()
		other := f.connect()

		req.NoError(f.router.Dispatch(ctx, origin, "message:new", data))

		req.Empty(drain(other))
		req.Empty(drain(origin))
	})

	t.Run("reject", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t, WithFallbackPolicy(config.FallbackReject))
		origin := f.connect()
		other := f.connect()

		err := f.router.Dispatch(ctx, origin, "message:new", data)

		req.ErrorIs(err, model.ErrUnresolvableRecipient)
		req.Empty(drain(other))
		req.Equal(1, f.recorder.rejected["unresolvable_recipient"])
	})
}

func TestRouter_SetFallbackPolicy(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	req.Equal(config.FallbackBroadcast, f.router.FallbackPolicy())

	req.NoError(f.router.SetFallbackPolicy(config.FallbackDrop))
	req.Equal(config.FallbackDrop, f.router.FallbackPolicy())

	req.Error(f.router.SetFallbackPolicy("shout"))
	req.Equal(config.FallbackDrop, f.router.FallbackPolicy())
}

func TestRouter_Missing_Event_Name(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	err := f.router.Dispatch(context.Background(), nil, "", map[string]any{"sender_id": 5})

	req.ErrorIs(err, model.ErrMissingEventName)
	req.Equal(1, f.recorder.rejected["missing_event_name"])
}

func TestRouter_Signal_Stays_In_Room_Without_Echo(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	c5 := f.join(t, 5, 9)
	c9 := f.join(t, 9, 5)
	outsider := f.connect()
	drain(c5)
	drain(c9)

	// When 5 sends an offer to its room by id
	err := f.router.Dispatch(ctx, c5, "webrtc:offer", map[string]any{"roomId": "5-9", "sdp": "v=0"})

	// Then only the peer receives it
	req.NoError(err)
	req.Equal([]string{"webrtc:offer"}, names(drain(c9)))
	req.Empty(drain(c5))
	req.Empty(drain(outsider))

	// When a candidate carries no addressing at all, the origin's room is used
	req.NoError(f.router.Dispatch(ctx, c9, "webrtc:candidate", map[string]any{"candidate": "x"}))
	req.Equal([]string{"webrtc:candidate"}, names(drain(c5)))
}

func TestRouter_Signal_Requires_Membership(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	c5 := f.join(t, 5, 9)
	drain(c5)
	intruder := f.connect()

	err := f.router.Dispatch(context.Background(), intruder, "webrtc:signal", map[string]any{"roomId": "5-9", "type": "offer"})

	req.ErrorIs(err, model.ErrNotRoomMember)
	req.Empty(drain(c5))
}

func TestRouter_Signal_From_Bridge_Skips_Membership(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	c5 := f.join(t, 5, 9)
	drain(c5)

	err := f.router.Dispatch(context.Background(), nil, "webrtc:signal", map[string]any{"roomId": "5-9", "type": "offer"})

	req.NoError(err)
	req.Len(drain(c5), 1)
}

func TestRouter_Call_Lifecycle_Fans_Out_To_Room(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	c5 := f.join(t, 5, 9)
	c9 := f.join(t, 9, 5)
	drain(c5)
	drain(c9)

	// When 5 starts a call
	err := f.router.Dispatch(ctx, c5, "call:start", map[string]any{"sender_id": 5, "receiver_id": 9, "id": "c1"})

	// Then the call rings and both members, origin included, are told once
	req.NoError(err)
	tracked, ok := f.calls.Get("c1")
	req.True(ok)
	req.Equal(call.StatusRinging, tracked.Status)
	req.Equal([]string{"call:ringing"}, names(drain(c5)))
	ringing := drain(c9)
	req.Equal([]string{"call:ringing"}, names(ringing))
	payload := ringing[0].GetPayload().(model.Payload)
	req.Equal("ringing", payload["status"])
	req.Equal("c1", payload["callId"])
	req.Equal("5-9", payload["roomId"])

	// When 9 accepts
	err = f.router.Dispatch(ctx, c9, "call:accept", map[string]any{"call_id": "c1", "sender_id": 9, "receiver_id": 5})

	// Then the call is accepted
	req.NoError(err)
	tracked, _ = f.calls.Get("c1")
	req.Equal(call.StatusAccepted, tracked.Status)
	req.Equal([]string{"call:accepted"}, names(drain(c5)))
	req.Equal([]string{"call:accepted"}, names(drain(c9)))

	// And both transitions were exported
	exported := f.exporter.published()
	req.Len(exported, 2)
	req.Equal("im_signaling.call.ringing", exported[0].(event.Exportable).GetRoutingKey())
	req.Equal("im_signaling.call.accepted", exported[1].(event.Exportable).GetRoutingKey())
}

func TestRouter_Call_Start_Rings_Receiver_Channel(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// Given 9 is not in any room yet
	c9 := f.connect()
	f.lifecycle.Register(c9, "9")
	c5 := f.connect()

	// When 5 calls without an id
	err := f.router.Dispatch(ctx, c5, "call:start", map[string]any{"caller_id": 5, "callee_id": 9})

	// Then 9 rings and an id was assigned
	req.NoError(err)
	got := drain(c9)
	req.Equal([]string{"call:ringing"}, names(got))
	callID, _ := got[0].GetPayload().(model.Payload)["callId"].(string)
	req.NotEmpty(callID)
	_, ok := f.calls.Get(callID)
	req.True(ok)
}

func TestRouter_Call_Strict_Rejects_Out_Of_Order(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.calls.SetPolicy(call.PolicyStrict)
	ctx := context.Background()
	c5 := f.join(t, 5, 9)
	c9 := f.join(t, 9, 5)
	drain(c5)
	drain(c9)

	// When an unknown call is accepted
	err := f.router.Dispatch(ctx, c9, "call:accept", map[string]any{"call_id": "ghost", "sender_id": 9, "receiver_id": 5})

	// Then it is refused and nobody is told
	req.ErrorIs(err, call.ErrCallNotFound)
	req.Empty(drain(c5))

	// When an ended call is accepted
	req.NoError(f.router.Dispatch(ctx, c5, "call:start", map[string]any{"sender_id": 5, "receiver_id": 9, "id": "c1"}))
	req.NoError(f.router.Dispatch(ctx, c5, "call:end", map[string]any{"sender_id": 5, "receiver_id": 9, "id": "c1"}))
	drain(c5)
	drain(c9)
	err = f.router.Dispatch(ctx, c9, "call:accept", map[string]any{"call_id": "c1", "sender_id": 9, "receiver_id": 5})

	req.ErrorIs(err, call.ErrInvalidTransition)
	req.Empty(drain(c5))
	req.Equal(1, f.recorder.rejected["invalid_call_transition"])
}

func TestRouter_Call_Permissive_Tolerates_Reordering(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	c5 := f.join(t, 5, 9)
	drain(c5)

	req.NoError(f.router.Dispatch(ctx, c5, "call:end", map[string]any{"sender_id": 5, "receiver_id": 9, "id": "c1"}))
	req.NoError(f.router.Dispatch(ctx, c5, "call:accept", map[string]any{"sender_id": 5, "receiver_id": 9, "id": "c1"}))

	tracked, _ := f.calls.Get("c1")
	req.Equal(call.StatusAccepted, tracked.Status)
	req.Equal([]string{"call:ended", "call:accepted"}, names(drain(c5)))
}

func TestRouter_Call_Export_Failure_Does_Not_Fail_Dispatch(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.exporter.err = errors.New("broker down")
	c5 := f.join(t, 5, 9)
	drain(c5)

	err := f.router.Dispatch(context.Background(), c5, "call:start", map[string]any{"sender_id": 5, "receiver_id": 9, "id": "c1"})

	req.NoError(err)
	req.Len(drain(c5), 1)
}

func TestRouter_Lifecycle_Events_Need_Origin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	err := f.router.Dispatch(context.Background(), nil, model.EventJoinRoom, map[string]any{"senderId": 5, "receiverId": 9})

	req.NoError(err)
	req.Zero(f.rooms.Len())
}

func TestRouter_Disconnect_Event(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	c5 := f.join(t, 5, 9)

	req.NoError(f.router.Dispatch(context.Background(), c5, model.EventDisconnect, nil))

	req.Zero(f.rooms.Len())
	req.Zero(f.router.Stats().TotalConnections)
}

func TestRouter_Bridge_Relay_To_Room(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	c5 := f.join(t, 5, 9)
	c9 := f.join(t, 9, 5)
	drain(c5)
	drain(c9)

	// When an external service injects a message with no origin
	err := f.router.Dispatch(context.Background(), nil, "message:new", map[string]any{"sender_id": 5, "receiver_id": 9})

	// Then every member receives it exactly once
	req.NoError(err)
	req.Len(drain(c5), 1)
	req.Len(drain(c9), 1)
	req.Equal(2, f.recorder.routed["message"])
}

func TestRouter_Stats(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.join(t, 5, 9)
	f.join(t, 9, 5)
	req.NoError(f.router.Dispatch(context.Background(), nil, "call:start", map[string]any{"sender_id": 5, "receiver_id": 9, "id": "c1"}))

	stats := f.router.Stats()

	req.Equal(2, stats.TotalUsers)
	req.Equal(2, stats.TotalConnections)
	req.Equal(1, stats.TotalRooms)
	req.Equal(1, stats.TrackedCalls)
}

func TestDispatcherMiddleware_Passes_Through(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	d := NewDispatcherMiddleware(f.router, f.router.logger)

	err := d.Dispatch(context.Background(), nil, "", nil)

	req.ErrorIs(err, model.ErrMissingEventName)
}

func TestRouter_Message_Before_Any_Room_Uses_User_Channel(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// Given 5 and 9 are registered but no room exists
	c5 := f.connect()
	c9 := f.connect()
	req.NoError(f.router.Dispatch(ctx, c5, model.EventRegister, map[string]any{"userId": 5}))
	req.NoError(f.router.Dispatch(ctx, c9, model.EventRegister, map[string]any{"userId": 9}))

	// When 5 sends a message to 9
	req.NoError(f.router.Dispatch(ctx, c5, "message:new", map[string]any{"sender_id": 5, "receiver_id": 9}))

	// Then 9 receives it through its user channel and no room was created
	req.Equal([]string{"message:new"}, names(drain(c9)))
	req.Empty(drain(c5))
	req.False(f.rooms.Exists("5-9"))
}

func TestRouter_Events_From_One_Connection_Keep_Send_Order(t *testing.T) {
	req := require.New(t)
	f := newFixtureWithHub(t, registry.NewHub(registry.WithMailboxSize(4), registry.WithSendTimeout(0)))
	ctx := context.Background()
	c5 := f.join(t, 5, 9)
	c9 := f.join(t, 9, 5)
	drain(c5)
	drain(c9)

	// When 5 mixes messages and signals
	req.NoError(f.router.Dispatch(ctx, c5, "webrtc:offer", map[string]any{"sdp": "v=0"}))
	req.NoError(f.router.Dispatch(ctx, c5, "message:new", map[string]any{"sender_id": 5, "receiver_id": 9, "text": "hi"}))
	req.NoError(f.router.Dispatch(ctx, c5, "webrtc:candidate", map[string]any{"candidate": "c1"}))

	// Then 9 sees them in send order
	req.Equal([]string{"webrtc:offer", "message:new", "webrtc:candidate"}, names(drain(c9)))

	// When 5 floods the peer while its writer is stalled
	req.NoError(f.router.Dispatch(ctx, c5, "webrtc:offer", map[string]any{"sdp": "v=1"}))
	for i := 1; i <= 5; i++ {
		req.NoError(f.router.Dispatch(ctx, c5, "webrtc:candidate", map[string]any{"candidate": fmt.Sprintf("c%d", i)}))
	}

	// Then the overflow is dropped and what was queued keeps its order
	var got []string
	for _, ev := range drain(c9) {
		p := ev.GetPayload().(model.Payload)
		got = append(got, fmt.Sprintf("%s/%v %v", ev.GetName(), p["sdp"], p["candidate"]))
	}
	req.Equal([]string{
		"webrtc:offer/v=1 <nil>",
		"webrtc:candidate/<nil> c1",
		"webrtc:candidate/<nil> c2",
		"webrtc:candidate/<nil> c3",
	}, got)
	req.Equal(uint64(2), c9.Dropped())
}
