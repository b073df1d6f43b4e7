package model

import (
	"maps"
	"strings"

	"github.com/webitel/im-signaling-service/internal/domain/event"
)

// Inbound event names (client -> hub).
const (
	EventRegister        = "register"
	EventJoinUserChannel = "joinUserChannel"
	EventJoinRoom        = "joinRoom"
	EventLeaveRoom       = "leaveRoom"
	EventDisconnect      = "disconnect"
)

// Outbound event names (hub -> client) produced by the hub itself.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventError        = "error"
	EventRoomJoined   = "room:joined"
	EventRoomReady    = "room:ready"
	EventRoomLeft     = "room:left"
)

// [PRECEDENCE] Field names tried in order. Different event families use
// different names for the same participant, so all of them are consulted.
var (
	SenderFields   = []string{"sender_id", "senderId", "caller_id", "callerId", "from", "userId", "user_id"}
	ReceiverFields = []string{"receiver_id", "receiverId", "callee_id", "calleeId", "to", "targetUserId"}
	UserFields     = []string{"userId", "user_id"}
	CallIDFields   = []string{"call_id", "callId", "id"}
	RoomFields     = []string{"roomId", "room_id"}
)

type Family int8

const (
	FamilyCustom Family = iota
	FamilyLifecycle
	FamilyMessage
	FamilySignal
	FamilyCall
)

func (f Family) String() string {
	switch f {
	case FamilyCustom:
		return "custom"
	case FamilyLifecycle:
		return "lifecycle"
	case FamilyMessage:
		return "message"
	case FamilySignal:
		return "signal"
	case FamilyCall:
		return "call"
	default:
		return "unknown"
	}
}

// Route is the static fan-out policy of one event name.
type Route struct {
	Family   Family
	Kind     event.Kind
	Priority event.Priority
	// ExcludeOrigin drops the sending connection from room fan-out.
	// Peer relays (messages, signaling) must not echo; status broadcasts must.
	ExcludeOrigin bool
	// NotifyReceiver also delivers to the receiver's user channel,
	// independent of room membership.
	NotifyReceiver bool
}

var (
	lifecycleRoute = Route{Family: FamilyLifecycle, Kind: event.Presence, Priority: event.PriorityNormal}
	messageRoute   = Route{Family: FamilyMessage, Kind: event.Message, Priority: event.PriorityNormal, ExcludeOrigin: true, NotifyReceiver: true}
	signalRoute    = Route{Family: FamilySignal, Kind: event.Signal, Priority: event.PriorityHigh, ExcludeOrigin: true}
	callRoute      = Route{Family: FamilyCall, Kind: event.CallStatus, Priority: event.PriorityHigh, NotifyReceiver: true}
	customRoute    = Route{Family: FamilyCustom, Kind: event.Custom, Priority: event.PriorityNormal, ExcludeOrigin: true, NotifyReceiver: true}
)

var routes = map[string]Route{
	EventRegister:        lifecycleRoute,
	EventJoinUserChannel: lifecycleRoute,
	EventJoinRoom:        lifecycleRoute,
	EventLeaveRoom:       lifecycleRoute,
	EventDisconnect:      lifecycleRoute,

	"message:new":      messageRoute,
	"message:update":   messageRoute,
	"message:delete":   messageRoute,
	"message:reaction": messageRoute,
	"message:reply":    messageRoute,

	"webrtc:offer":     signalRoute,
	"webrtc:answer":    signalRoute,
	"webrtc:candidate": signalRoute,
	"webrtc:signal":    signalRoute,

	"call:start":  callRoute,
	"call:accept": callRoute,
	"call:reject": callRoute,
	"call:cancel": callRoute,
	"call:end":    callRoute,
}

// RouteOf returns the fan-out policy for an event name. Unknown names are relayed as-is.
func RouteOf(name string) Route {
	if r, ok := routes[name]; ok {
		return r
	}
	return customRoute
}

// Payload is the loosely typed data object of an inbound event.
type Payload map[string]any

// Lookup returns the first present, non-empty scalar among keys.
func (p Payload) Lookup(keys []string) (string, bool) {
	for _, k := range keys {
		if s, ok := scalarString(p[k]); ok {
			return s, true
		}
	}
	return "", false
}

// Clone returns a shallow copy that is safe to augment.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	return maps.Clone(p)
}

// InboundEvent is the resolved form of an inbound envelope. Optional fields
// stay zero when the payload does not carry them.
type InboundEvent struct {
	Name  string
	Route Route
	Data  Payload

	SenderID   UserID
	ReceiverID UserID
	UserID     UserID
	CallID     string
	RoomID     RoomKey
}

// NewInboundEvent resolves participants through the precedence lists.
func NewInboundEvent(name string, data map[string]any) (*InboundEvent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingEventName
	}

	in := &InboundEvent{
		Name:  name,
		Route: RouteOf(name),
		Data:  Payload(data),
	}
	if in.Data == nil {
		in.Data = Payload{}
	}

	if s, ok := in.Data.Lookup(SenderFields); ok {
		in.SenderID = UserID(s)
	}
	if s, ok := in.Data.Lookup(ReceiverFields); ok {
		in.ReceiverID = UserID(s)
	}
	if s, ok := in.Data.Lookup(UserFields); ok {
		in.UserID = UserID(s)
	}
	if s, ok := in.Data.Lookup(RoomFields); ok {
		in.RoomID = RoomKey(s)
	}
	if in.Route.Family == FamilyCall {
		if s, ok := in.Data.Lookup(CallIDFields); ok {
			in.CallID = s
		}
	}

	return in, nil
}

// HasPair reports whether both participants were resolved.
func (in *InboundEvent) HasPair() bool {
	return in.SenderID != "" && in.ReceiverID != ""
}
