package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUserID_Normalises_Numbers(t *testing.T) {
	req := require.New(t)

	cases := []struct {
		in   any
		want UserID
		ok   bool
	}{
		{"5", "5", true},
		{" 5 ", "5", true},
		{5, "5", true},
		{int64(10), "10", true},
		{float64(5), "5", true},
		{5.5, "5.5", true},
		{json.Number("9"), "9", true},
		{json.Number("9.0"), "9", true},
		{"undefined", "", false},
		{"null", "", false},
		{"", "", false},
		{nil, "", false},
		{true, "", false},
		{map[string]any{}, "", false},
	}

	for _, tc := range cases {
		got, ok := ParseUserID(tc.in)
		req.Equal(tc.ok, ok, "input %#v", tc.in)
		req.Equal(tc.want, got, "input %#v", tc.in)
	}
}

func TestNewInboundEvent_Rejects_Missing_Name(t *testing.T) {
	req := require.New(t)

	_, err := NewInboundEvent("  ", map[string]any{"sender_id": 5})

	req.ErrorIs(err, ErrMissingEventName)
}

func TestNewInboundEvent_Field_Precedence(t *testing.T) {
	req := require.New(t)

	// Given several aliases of the same participant
	in, err := NewInboundEvent("call:start", map[string]any{
		"caller_id":    7,
		"sender_id":    "5",
		"receiverId":   json.Number("9"),
		"to":           "11",
		"id":           "c-alias",
		"call_id":      "c1",
		"room_id":      "5-9",
		"unrelated":    true,
		"targetUserId": "13",
	})

	// Then the first name in each precedence list wins
	req.NoError(err)
	req.Equal(FamilyCall, in.Route.Family)
	req.Equal(UserID("5"), in.SenderID)
	req.Equal(UserID("9"), in.ReceiverID)
	req.Equal("c1", in.CallID)
	req.Equal(RoomKey("5-9"), in.RoomID)
	req.True(in.HasPair())
}

func TestNewInboundEvent_Call_Id_Only_For_Call_Family(t *testing.T) {
	req := require.New(t)

	in, err := NewInboundEvent("message:new", map[string]any{"id": "m1", "sender_id": 5})

	req.NoError(err)
	req.Empty(in.CallID)
	req.False(in.HasPair())
}

func TestRouteOf_Families(t *testing.T) {
	req := require.New(t)

	req.Equal(FamilyLifecycle, RouteOf(EventJoinRoom).Family)
	req.Equal(FamilyMessage, RouteOf("message:reaction").Family)
	req.Equal(FamilySignal, RouteOf("webrtc:candidate").Family)
	req.Equal(FamilyCall, RouteOf("call:end").Family)

	custom := RouteOf("typing")
	req.Equal(FamilyCustom, custom.Family)
	req.True(custom.ExcludeOrigin)

	// Status broadcasts echo to their origin, peer relays do not.
	req.False(RouteOf("call:accept").ExcludeOrigin)
	req.True(RouteOf("webrtc:offer").ExcludeOrigin)
	req.True(RouteOf("message:new").NotifyReceiver)
}

func TestPayload_Clone_Does_Not_Alias(t *testing.T) {
	req := require.New(t)
	p := Payload{"a": 1}

	c := p.Clone()
	c["b"] = 2

	req.NotContains(p, "b")
	req.NotNil(Payload(nil).Clone())
}

func TestParseUserID_Keeps_Large_Integers(t *testing.T) {
	req := require.New(t)

	got, ok := ParseUserID(json.Number("12345678901234567890"))

	req.True(ok)
	req.Equal(UserID("12345678901234567890"), got)
}
