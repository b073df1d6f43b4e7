package bridge

import (
	httpsrv "github.com/webitel/im-signaling-service/infra/server/http"
	"github.com/webitel/im-signaling-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bridge-handler",
	fx.Provide(
		func(r *service.Router) StatsProvider { return r },
		NewBridgeHandler,
	),
	fx.Invoke(RegisterRoutes),
)

func RegisterRoutes(server *httpsrv.Server, handler *BridgeHandler) {
	server.Router.Post("/emit", handler.Emit)
	server.Router.Get("/health", handler.Health)
	server.Router.Get("/stats", handler.Stats)
}
