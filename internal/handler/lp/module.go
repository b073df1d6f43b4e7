package lp

import (
	httpsrv "github.com/webitel/im-signaling-service/infra/server/http"
	"go.uber.org/fx"
)

var Module = fx.Module("lp-handler",
	fx.Provide(NewLPHandler),
	fx.Invoke(RegisterRoutes),
)

func RegisterRoutes(server *httpsrv.Server, handler *LPHandler) {
	server.Router.Get("/poll/{userID}", handler.Poll)
}
