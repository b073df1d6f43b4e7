package amqp

import (
	"context"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Decoder turns a raw bus message into the payload of a domain handler.
type Decoder[T any] func(msg *message.Message) (*T, error)

// DomainHandler defines the functional signature for business logic.
type DomainHandler[T any] func(ctx context.Context, payload *T) error

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to Domain logic, handling Panic Recovery and Decoding.
func Bind[T any](h *MessageHandler, decode Decoder[T], fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) (err error) {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
				err = nil // ACK: a message that panics once panics again.
			}
		}()

		// [DECODING]
		payload, err := decode(msg)
		if err != nil {
			h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
			return nil // ACK: Poison Pill protection.
		}

		// [EXECUTION]
		// Domain logic execution with enriched context (TraceID).
		return fn(msg.Context(), payload)
	}
}
