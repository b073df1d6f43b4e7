package amqp

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-signaling-service/config"
	"github.com/webitel/im-signaling-service/internal/adapter/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		NewMessageHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(h *MessageHandler, router *message.Router, provider pubsub.Provider, cfg *config.Config) error {
		return h.RegisterHandlers(router, provider, cfg)
	}),
)
