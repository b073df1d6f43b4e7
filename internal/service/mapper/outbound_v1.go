// Package mapper builds the outbound events the hub fans out.
package mapper

import (
	"github.com/webitel/im-signaling-service/internal/domain/call"
	"github.com/webitel/im-signaling-service/internal/domain/event"
	"github.com/webitel/im-signaling-service/internal/domain/model"
)

// Payload keys the hub adds to relayed data.
const (
	KeyRoomID = "roomId"
	KeyStatus = "status"
	KeyCallID = "callId"
)

// RelayEvent wraps a pass-through event. The inbound data is copied, so one
// payload is shared by every target without aliasing the caller's map.
func RelayEvent(in *model.InboundEvent, key model.RoomKey) *event.SystemEvent {
	payload := in.Data.Clone()
	if key != "" {
		payload[KeyRoomID] = string(key)
	}
	return event.NewSystemEvent(in.Name, in.Route.Kind, in.Route.Priority, payload)
}

// CallEvent builds the outbound "call:<status>" event of a transition.
func CallEvent(in *model.InboundEvent, c call.Call) *event.CallV1Event {
	payload := in.Data.Clone()
	if c.RoomKey != "" {
		payload[KeyRoomID] = string(c.RoomKey)
	}
	payload[KeyStatus] = string(c.Status)
	if c.ID != "" {
		payload[KeyCallID] = c.ID
	}
	return event.NewCallV1Event(CallRecord(c), payload)
}

// CallRecord is the bus view of a tracked call.
func CallRecord(c call.Call) event.CallRecord {
	rec := event.CallRecord{
		CallID:     c.ID,
		Status:     string(c.Status),
		CallerID:   string(c.CallerID),
		ReceiverID: string(c.ReceiverID),
		RoomID:     string(c.RoomKey),
	}
	if !c.StartedAt.IsZero() {
		rec.StartedAt = c.StartedAt.UnixMilli()
	}
	if !c.UpdatedAt.IsZero() {
		rec.UpdatedAt = c.UpdatedAt.UnixMilli()
	}
	return rec
}

func RoomJoinedEvent(key model.RoomKey, joiner model.Connector, members []model.Connector) *event.SystemEvent {
	return event.NewSystemEvent(model.EventRoomJoined, event.Presence, event.PriorityNormal, &model.RoomJoinedPayload{
		RoomID:       string(key),
		UserID:       string(model.PrimaryUser(joiner)),
		ConnectionID: joiner.GetID().String(),
		Members:      model.Members(members),
	})
}

func RoomReadyEvent(key model.RoomKey, members []model.Connector) *event.SystemEvent {
	return event.NewSystemEvent(model.EventRoomReady, event.Presence, event.PriorityHigh, &model.RoomReadyPayload{
		RoomID:  string(key),
		Members: model.Members(members),
	})
}

func RoomLeftEvent(key model.RoomKey, leaver model.Connector, remaining []model.Connector) *event.SystemEvent {
	return event.NewSystemEvent(model.EventRoomLeft, event.Presence, event.PriorityNormal, &model.RoomLeftPayload{
		RoomID:       string(key),
		UserID:       string(model.PrimaryUser(leaver)),
		ConnectionID: leaver.GetID().String(),
		Members:      model.Members(remaining),
	})
}

// ConnectedEvent is the handshake sent on every new connection.
func ConnectedEvent(conn model.Connector) *event.SystemEvent {
	return event.NewSystemEvent(model.EventConnected, event.Connected, event.PriorityHigh, &model.ConnectedPayload{
		Ok:            true,
		ConnectionID:  conn.GetID().String(),
		ServerVersion: model.ServerVersion,
	})
}

// ErrorEvent reports a rejected inbound event back to its connection.
func ErrorEvent(code, message, eventName string) *event.SystemEvent {
	return event.NewSystemEvent(model.EventError, event.Failure, event.PriorityHigh, &model.ErrorPayload{
		Code:    code,
		Message: message,
		Event:   eventName,
	})
}
