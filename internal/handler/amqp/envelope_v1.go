package amqp

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-signaling-service/internal/adapter/pubsub"
	"github.com/webitel/im-signaling-service/internal/service/dto"
)

// [RABBIT_V1] `{"event": ..., "data": {...}}`, the same contract as POST /emit.
// Producers that route by header may leave "event" empty and set the
// "event" metadata instead.
func DecodeEnvelopeV1(msg *message.Message) (*dto.Envelope, error) {
	env, err := dto.UnmarshalEnvelope(msg.Payload)
	if err != nil {
		return nil, err
	}
	if env.Event == "" {
		env.Event = msg.Metadata.Get(pubsub.MetadataEventName)
	}
	return env, nil
}
