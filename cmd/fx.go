package cmd

import (
	"log/slog"

	"github.com/webitel/im-signaling-service/config"
	httpsrv "github.com/webitel/im-signaling-service/infra/server/http"
	"github.com/webitel/im-signaling-service/internal/adapter/metrics"
	"github.com/webitel/im-signaling-service/internal/adapter/pubsub"
	"github.com/webitel/im-signaling-service/internal/domain/call"
	"github.com/webitel/im-signaling-service/internal/domain/registry"
	"github.com/webitel/im-signaling-service/internal/domain/room"
	amqpdi "github.com/webitel/im-signaling-service/internal/handler/amqp"
	"github.com/webitel/im-signaling-service/internal/handler/bridge"
	"github.com/webitel/im-signaling-service/internal/handler/lp"
	"github.com/webitel/im-signaling-service/internal/handler/ws"
	"github.com/webitel/im-signaling-service/internal/service"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(Options(cfg))
}

// Options is the complete dependency graph of the server.
func Options(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.WithLogger(func(l *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: l}
		}),
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogVar,
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideTracerProvider,
		),
		fx.Invoke(WatchLogLevel),

		// [ORDER] The HTTP server stops after the hub closed every session.
		httpsrv.Module,
		registry.Module,
		room.Module,
		call.Module,
		pubsub.Module,
		metrics.Module,
		service.Module,
		ws.Module,
		lp.Module,
		bridge.Module,
		amqpdi.Module,
	)
}
