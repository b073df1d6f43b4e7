package service

import (
	"log/slog"

	"github.com/webitel/im-signaling-service/config"
	"github.com/webitel/im-signaling-service/internal/domain/call"
	"github.com/webitel/im-signaling-service/internal/domain/registry"
	"github.com/webitel/im-signaling-service/internal/domain/room"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

// RouterParams collects the Router collaborators; bus export and metrics are optional.
type RouterParams struct {
	fx.In

	Cfg       *config.Config
	Hub       registry.Hubber
	Rooms     *room.Directory
	Calls     *call.Tracker
	Lifecycle Lifecycler
	Logger    *slog.Logger
	Tracer    trace.TracerProvider `optional:"true"`
	Exporter  Exporter             `optional:"true"`
	Recorder  Recorder             `optional:"true"`
}

func ProvideRouter(p RouterParams) *Router {
	return NewRouter(p.Hub, p.Rooms, p.Calls, p.Lifecycle,
		WithFallbackPolicy(p.Cfg.Routing.Fallback),
		WithExporter(p.Exporter),
		WithRecorder(p.Recorder),
		WithLogger(p.Logger),
		WithTracerProvider(p.Tracer),
	)
}

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		fx.Annotate(
			NewLifecycle,
			fx.As(new(Lifecycler)),
		),
		ProvideRouter,

		// [DECORATION_LAYER] Transports see the Router through the logging decorator.
		func(r *Router, logger *slog.Logger) Dispatcher {
			return NewDispatcherMiddleware(r, logger)
		},
	),

	// [HOT_RELOAD] Routing and call policies follow the config file.
	fx.Invoke(func(cfg *config.Config, r *Router, calls *call.Tracker, logger *slog.Logger) {
		cfg.OnChange(logger, func(next *config.Config) {
			if err := r.SetFallbackPolicy(next.Routing.Fallback); err != nil {
				logger.Warn("FALLBACK_POLICY_RELOAD_FAILED", "err", err)
			}
			if p, err := call.ParsePolicy(next.Calls.Policy); err == nil {
				calls.SetPolicy(p)
			}
		})
	}),
)
