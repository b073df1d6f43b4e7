package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/webitel/im-signaling-service/config"
	"github.com/webitel/im-signaling-service/internal/adapter/pubsub"
	"github.com/webitel/im-signaling-service/internal/service"
	"go.uber.org/fx"
)

const (
	// ------------------- TOPICS (BINDING KEYS) -----------------
	TopicAllEvents = "#"

	// ------------------- QUEUES (CONSUMERS) --------------------
	InboundProcessorQueue = "im-signaling.inbound-processor.v1"
	// InboundPoisonTopic is the routing key of poisoned envelopes on the poison exchange.
	InboundPoisonTopic = "im-signaling.inbound-processor.v1.poison"
)

type MessageHandler struct {
	dispatcher service.Dispatcher
	logger     *slog.Logger
}

func NewMessageHandler(dispatcher service.Dispatcher, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{dispatcher, logger}
}

// NewWatermillRouter builds the consumer router and binds it to the app lifecycle.
func NewWatermillRouter(lc fx.Lifecycle, wmLogger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("watermill router: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				_ = router.Run(ctx)
			}()
			<-router.Running()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return router.Close()
		},
	})
	return router, nil
}

// [REGISTRATION_PIPELINE]
func (h *MessageHandler) RegisterHandlers(router *message.Router, provider pubsub.Provider, cfg *config.Config) error {
	// [POISON_EXCHANGE] Kept apart from the inbound exchange, which this node consumes
	// with a catch-all binding, and from the call export exchange.
	poisonPub, err := provider.BuildPublisher(cfg.AMQP.PoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}
	poison, err := middleware.PoisonQueue(poisonPub, InboundPoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	configs := []struct {
		name     string
		exchange string
		binding  string
		handler  message.NoPublishHandlerFunc
	}{
		{"ON_INBOUND_EVENT", cfg.AMQP.InboundTopic, TopicAllEvents, Bind(h, DecodeEnvelopeV1, h.OnInboundEventV1)},
	}

	for _, c := range configs {
		instanceID := uuid.NewString()[:8]
		// [UNIQUE_HANDLER_QUEUE]
		// We create a unique queue for EACH handler on THIS node.
		// Format: im-signaling.inbound-processor.v1.b23a8f12.ON_INBOUND_EVENT
		handlerQueue := fmt.Sprintf("%s.%s.%s", InboundProcessorQueue, instanceID, c.name)

		sub, err := provider.BuildSubscriber(c.exchange, handlerQueue, c.binding)
		if err != nil {
			return err
		}

		router.AddConsumerHandler(c.name, c.exchange, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("AMQP_PIPELINE_READY", "queue", InboundProcessorQueue)
	return nil
}
