package httpsrv

import (
	"context"

	"github.com/webitel/im-signaling-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("http-server",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Server, cfg *config.Config) {
		lc.Append(fx.Hook{
			OnStart: s.Start,
			OnStop: func(ctx context.Context) error {
				// [GRACEFUL_SHUTDOWN] Bounded wait for in-flight requests.
				ctx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
				defer cancel()
				return s.Stop(ctx)
			},
		})
	}),
)
