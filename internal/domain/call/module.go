package call

import (
	"github.com/webitel/im-signaling-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("call",
	fx.Provide(
		func(cfg *config.Config) (*Tracker, error) {
			policy, err := ParsePolicy(cfg.Calls.Policy)
			if err != nil {
				return nil, err
			}
			return NewTracker(
				WithPolicy(policy),
				WithRetention(cfg.Calls.MaxTracked, cfg.Calls.TTL),
			), nil
		},
	),
)
