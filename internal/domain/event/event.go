package event

import "sync/atomic"

type Kind int16

const (
	Connected    Kind = iota + 1 // [SYSTEM]
	Disconnected                 // [SYSTEM]
	Failure                      // [SYSTEM]
	Presence                     // [ROOM]
	Message                      // [BUSINESS]
	Signal                       // [WEBRTC]
	CallStatus                   // [CALL]
	Custom                       // [PASS_THROUGH]
)

func (k Kind) String() string {
	switch k {
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	case Failure:
		return "Failure"
	case Presence:
		return "Presence"
	case Message:
		return "Message"
	case Signal:
		return "Signal"
	case CallStatus:
		return "CallStatus"
	case Custom:
		return "Custom"
	default:
		return "Unknown"
	}
}

type Priority int32

const (
	PriorityLow    Priority = 10
	PriorityNormal Priority = 20
	PriorityHigh   Priority = 30
)

// Eventer defines the contract for all outbound packets flowing through the Hub.
// One Eventer instance is shared by every connection it is fanned out to.
type Eventer interface {
	GetID() string
	GetName() string
	GetKind() Kind
	GetPriority() Priority
	GetOccurredAt() int64
	GetPayload() any
	GetCached() []byte
	SetCached([]byte)
}

// Exportable defines an event that should be re-published to the message bus.
type Exportable interface {
	// We return the key only if the event is ready to be exported.
	// If it returns an empty string, the dispatcher will skip publishing.
	GetRoutingKey() string
	// GetExportPayload is the body published to the bus.
	GetExportPayload() any
}

// wireCache holds the transport encoding of an event.
// Write pumps of different connections may race on it, so it is atomic.
type wireCache struct {
	v atomic.Pointer[[]byte]
}

func (c *wireCache) GetCached() []byte {
	if p := c.v.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *wireCache) SetCached(b []byte) { c.v.Store(&b) }
