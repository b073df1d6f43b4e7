// internal/adapter/pubsub/dispatcher.go

package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sony/gobreaker"
	"github.com/webitel/im-signaling-service/internal/domain/event"
)

const (
	MetadataRoutingKey = "routing_key"
	MetadataEventName  = "event"
)

// ErrNotExportable is returned for events without a routing key.
var ErrNotExportable = errors.New("event is not exportable")

// EventDispatcher defines the high-level contract for outgoing events.
// This allows the handler to stay agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, ev event.Eventer) error
}

// ExportMessage is the bus body of an exported event.
type ExportMessage struct {
	ID         string `json:"id"`
	Event      string `json:"event"`
	OccurredAt int64  `json:"occurred_at"`
	Data       any    `json:"data"`
}

// eventDispatcher is the concrete implementation (private).
type eventDispatcher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker
}

// NewEventDispatcher returns the interface instead of the pointer to the struct.
// openFor is how long the breaker stays open after consecutive failures.
func NewEventDispatcher(pub message.Publisher, openFor time.Duration, logger *slog.Logger) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "bus-export",
			MaxRequests: 1,
			Timeout:     openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("CIRCUIT_BREAKER_STATE_CHANGED",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		}),
	}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev event.Eventer) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	exp, ok := ev.(event.Exportable)
	if !ok || exp.GetRoutingKey() == "" {
		return fmt.Errorf("event dispatcher: %s: %w", ev.GetName(), ErrNotExportable)
	}
	routingKey := exp.GetRoutingKey()

	payload, err := json.Marshal(&ExportMessage{
		ID:         ev.GetID(),
		Event:      ev.GetName(),
		OccurredAt: ev.GetOccurredAt(),
		Data:       exp.GetExportPayload(),
	})
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataRoutingKey, routingKey)
	msg.Metadata.Set(MetadataEventName, ev.GetName())
	msg.SetContext(ctx)

	// [CIRCUIT_BREAKER] A dead broker must not add latency to every call event.
	_, err = d.breaker.Execute(func() (interface{}, error) {
		return nil, d.publisher.Publish(routingKey, msg)
	})
	if err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", routingKey, err)
	}

	return nil
}
