package room

import (
	"github.com/webitel/im-signaling-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("room",
	fx.Provide(
		func(cfg *config.Config) *Directory {
			return NewDirectory(WithReadyThreshold(cfg.Routing.ReadyThreshold))
		},
	),
)
