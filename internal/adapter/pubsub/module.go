package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/im-signaling-service/config"
	"github.com/webitel/im-signaling-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		ProvideProvider,
		func(cfg *config.Config, p Provider, logger *slog.Logger) (EventDispatcher, error) {
			pub, err := p.BuildPublisher(cfg.AMQP.CallsTopic)
			if err != nil {
				return nil, err
			}
			return NewEventDispatcher(pub, cfg.AMQP.BreakerOpen, logger), nil
		},
		func(d EventDispatcher) service.Exporter { return d },
	),
)

// ProvideProvider picks RabbitMQ when a broker URL is configured, the in-memory bus otherwise.
func ProvideProvider(lc fx.Lifecycle, cfg *config.Config, wmLogger watermill.LoggerAdapter, logger *slog.Logger) Provider {
	var p Provider
	if cfg.AMQP.URL != "" {
		p = NewAMQPProvider(cfg.AMQP.URL, wmLogger)
		logger.Info("PUBSUB_TRANSPORT", "kind", "amqp")
	} else {
		p = NewMemoryProvider(wmLogger)
		logger.Info("PUBSUB_TRANSPORT", "kind", "memory")
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return p.Close()
		},
	})
	return p
}
