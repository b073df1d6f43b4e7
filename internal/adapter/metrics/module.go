package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/webitel/im-signaling-service/internal/domain/call"
	"github.com/webitel/im-signaling-service/internal/domain/model"
	"github.com/webitel/im-signaling-service/internal/domain/registry"
	"github.com/webitel/im-signaling-service/internal/domain/room"
	"github.com/webitel/im-signaling-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("metrics",
	fx.Provide(
		func() *prometheus.Registry {
			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			return reg
		},
		func(reg *prometheus.Registry, hub registry.Hubber, rooms *room.Directory, calls *call.Tracker) service.Recorder {
			return New(reg, func() model.HubStats {
				return service.Snapshot(hub, rooms, calls)
			})
		},
	),
)
