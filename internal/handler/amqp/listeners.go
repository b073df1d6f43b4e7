package amqp

import (
	"context"
	"errors"
	"fmt"

	"github.com/webitel/im-signaling-service/internal/domain/call"
	"github.com/webitel/im-signaling-service/internal/domain/model"
	"github.com/webitel/im-signaling-service/internal/service/dto"
)

// [ON_INBOUND_EVENT]
// Routes an externally injected event exactly like the HTTP bridge does.
func (h *MessageHandler) OnInboundEventV1(ctx context.Context, env *dto.Envelope) error {
	err := h.dispatcher.Dispatch(ctx, nil, env.Event, env.Data)
	switch {
	case err == nil:
		return nil
	case isPermanent(err):
		// [ERROR_CLASSIFICATION] Retrying can not fix the message itself.
		h.logger.Warn("INBOUND_EVENT_REJECTED", "event", env.Event, "err", err)
		return nil
	default:
		// [ERROR_PROPAGATION] Returning error triggers Middleware logic (retry, then poison queue).
		return fmt.Errorf("dispatch %s: %w", env.Event, err)
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, model.ErrMissingEventName) ||
		errors.Is(err, model.ErrUnresolvableRecipient) ||
		errors.Is(err, call.ErrInvalidTransition) ||
		errors.Is(err, call.ErrCallNotFound)
}
