package ws

import (
	httpsrv "github.com/webitel/im-signaling-service/infra/server/http"
	"go.uber.org/fx"
)

var Module = fx.Module("ws-handler",
	fx.Provide(NewWSHandler),
	fx.Invoke(RegisterRoutes),
)

func RegisterRoutes(server *httpsrv.Server, handler *WSHandler) {
	server.Router.Method("GET", "/ws", handler)
}
