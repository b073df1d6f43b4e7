package wsmarshaller

import (
	"github.com/webitel/im-signaling-service/internal/service/dto"
)

// UnmarshallClientEvent decodes one inbound text frame `{"event": ..., "data": {...}}`.
// A frame without an event name decodes fine; the router rejects it.
func UnmarshallClientEvent(frame []byte) (*dto.Envelope, error) {
	return dto.UnmarshalEnvelope(frame)
}
