package event

import "fmt"

var (
	_ Eventer    = (*CallV1Event)(nil)
	_ Exportable = (*CallV1Event)(nil)
)

// CallRecord is the exported snapshot of a call at the moment of a transition.
type CallRecord struct {
	CallID     string `json:"call_id"`
	Status     string `json:"status"`
	CallerID   string `json:"caller_id,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	RoomID     string `json:"room_id,omitempty"`
	StartedAt  int64  `json:"started_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

// CallV1Event is a call lifecycle status fanned out to room members and user channels.
//
// [STRATEGY]
// It distinguishes between:
//   - [WIRE_PAYLOAD] (payload): what the clients see (inbound data + status).
//   - [EXPORT_RECORD] (Record): what is re-published to the bus.
type CallV1Event struct {
	*SystemEvent
	Record CallRecord `json:"record"`
}

// NewCallV1Event builds an outbound "call:<status>" event.
func NewCallV1Event(rec CallRecord, payload any) *CallV1Event {
	return &CallV1Event{
		SystemEvent: NewSystemEvent("call:"+rec.Status, CallStatus, PriorityHigh, payload),
		Record:      rec,
	}
}

// GetRoutingKey generates the bus routing key.
// [PATTERN] im_signaling.call.{status}
func (e *CallV1Event) GetRoutingKey() string {
	if e.Record.CallID == "" {
		return ""
	}
	return fmt.Sprintf("im_signaling.call.%s", e.Record.Status)
}

// GetExportPayload returns the call snapshot instead of the client payload.
func (e *CallV1Event) GetExportPayload() any {
	return e.Record
}
