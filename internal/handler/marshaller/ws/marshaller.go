package wsmarshaller

import (
	"encoding/json"

	"github.com/webitel/im-signaling-service/internal/domain/event"
)

// WSEvent is a generic wrapper for WebSocket messages to provide consistent structure
type WSEvent struct {
	Event   string `json:"event"` // e.g., "room:ready", "call:ringing", "connected"
	ID      string `json:"id"`    // event ID
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

// MarshallDeliveryEvent prepares data for WebSocket transmission.
// One event fans out to many sockets, so the encoding is computed once and
// cached on the event.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	if cached := ev.GetCached(); cached != nil {
		return cached, nil
	}

	data, err := json.Marshal(&WSEvent{
		Event:   ev.GetName(),
		ID:      ev.GetID(),
		SentAt:  ev.GetOccurredAt(),
		Payload: ev.GetPayload(),
	})
	if err != nil {
		return nil, err
	}

	ev.SetCached(data)
	return data, nil
}
