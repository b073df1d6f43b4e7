package registry

import (
	"context"

	"github.com/webitel/im-signaling-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Hub using Functional Options
		func(cfg *config.Config) *Hub {
			return NewHub(
				WithMailboxSize(cfg.Delivery.MailboxSize),
				WithSendTimeout(cfg.Delivery.SendTimeout),
			)
		},
		fx.Annotate(
			func(h *Hub) Hubber { return h },
			fx.As(new(Hubber)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown() // [GRACEFUL_SHUTDOWN] Close every live connection
				return nil
			},
		})
	}),
)
