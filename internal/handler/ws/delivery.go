package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-signaling-service/config"
	httpsrv "github.com/webitel/im-signaling-service/infra/server/http"
	"github.com/webitel/im-signaling-service/infra/server/http/interceptors"
	"github.com/webitel/im-signaling-service/internal/domain/event"
	"github.com/webitel/im-signaling-service/internal/domain/model"
	wsmarshaller "github.com/webitel/im-signaling-service/internal/handler/marshaller/ws"
	"github.com/webitel/im-signaling-service/internal/service"
	"github.com/webitel/im-signaling-service/internal/service/mapper"
	"golang.org/x/sync/errgroup"
)

const Transport = "ws"

var (
	errPeerGone      = errors.New("peer closed the socket")
	errServerClosing = errors.New("session closed by server")
)

type WSHandler struct {
	logger     *slog.Logger
	lifecycle  service.Lifecycler
	dispatcher service.Dispatcher
	upgrader   websocket.Upgrader
	cfg        config.WSConfig
}

func NewWSHandler(logger *slog.Logger, lifecycle service.Lifecycler, dispatcher service.Dispatcher, cfg *config.Config, srv *httpsrv.Server) *WSHandler {
	return &WSHandler{
		logger:     logger,
		lifecycle:  lifecycle,
		dispatcher: dispatcher,
		cfg:        cfg.WS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     srv.CheckOrigin,
		},
	}
}

// ServeHTTP manages the lifecycle of one websocket session.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already wrote the HTTP error.
		h.logger.Warn("[WS] upgrade failed", slog.Any("err", err))
		return
	}
	defer ws.Close()

	meta, _ := interceptors.GetConnectMetadata(r.Context())
	meta.Transport = Transport

	conn := h.lifecycle.Connect(r.Context(), meta)

	// Create a session-scoped logger to track this specific connection
	l := h.logger.With(
		slog.String("conn_id", conn.GetID().String()),
		slog.String("remote_ip", meta.RemoteIP),
	)

	// [RESOURCE_RECLAMATION]
	// The transport synthesizes "disconnect": rooms, identities and the live set are cleaned up.
	defer func() {
		h.lifecycle.Disconnect(conn)
		l.Info("[WS] session closed and resources reclaimed")
	}()

	// [HANDSHAKE_LOGIC]
	conn.Send(mapper.ConnectedEvent(conn), 0)
	l.Info("[WS] session established", slog.String("version", model.ServerVersion))

	// [PUMPS]
	// One reader and one writer per socket. Only the writer closes the socket:
	// it owns the close frame, and closing unblocks the reader.
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		return h.readPump(gctx, ws, conn, l)
	})
	g.Go(func() error {
		defer ws.Close()
		return h.writePump(gctx, ws, conn, l)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errPeerGone) && !errors.Is(err, errServerClosing) {
		l.Warn("[WS] session terminated", slog.Any("err", err))
	}
}

// readPump dispatches frames synchronously, so one connection's events keep their order.
func (h *WSHandler) readPump(ctx context.Context, ws *websocket.Conn, conn model.Connector, l *slog.Logger) error {
	ws.SetReadLimit(h.cfg.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				l.Debug("[WS] read failed", slog.Any("err", err))
			}
			return errPeerGone
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))

		h.handleFrame(ctx, conn, frame, l)

		select {
		case <-conn.Done():
			// "disconnect" requested by the client itself. The writer drains and
			// sends the going-away frame.
			return nil
		default:
		}
	}
}

// handleFrame isolates one inbound event: a failure or panic here is
// reported to this connection only.
func (h *WSHandler) handleFrame(ctx context.Context, conn model.Connector, frame []byte, l *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			l.Error("PANIC_RECOVERED",
				"err", r,
				"stack", string(debug.Stack()),
			)
			conn.Send(mapper.ErrorEvent(mapper.CodeInternal, "internal error", ""), 0)
		}
	}()

	env, err := wsmarshaller.UnmarshallClientEvent(frame)
	if err != nil {
		conn.Send(mapper.ErrorEvent(mapper.CodeInvalidFrame, err.Error(), ""), 0)
		return
	}

	if err := h.dispatcher.Dispatch(ctx, conn, env.Event, env.Data); err != nil {
		conn.Send(mapper.DispatchErrorEvent(err, env.Event), 0)
	}
}

// writePump bridges the connection mailbox with the socket.
func (h *WSHandler) writePump(ctx context.Context, ws *websocket.Conn, conn model.Connector, l *slog.Logger) error {
	ticker := time.NewTicker(h.cfg.PingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.writeClose(ws, websocket.CloseNormalClosure)
			return nil

		case <-conn.Done():
			// [TERMINATION_SENTINEL] Flush what the hub queued before closing (e.g. "disconnected").
			if err := h.flush(ws, conn, l); err == nil {
				h.writeClose(ws, websocket.CloseGoingAway)
			}
			return errServerClosing

		case <-conn.Ready():
			if err := h.flush(ws, conn, l); err != nil {
				return err
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) write(ws *websocket.Conn, ev event.Eventer) error {
	data, err := wsmarshaller.MarshallDeliveryEvent(ev)
	if err != nil {
		// A payload that can not be encoded is skipped, the session survives.
		h.logger.Error("[WS] marshal failed", slog.Any("err", err), slog.String("event", ev.GetName()))
		return nil
	}
	_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
	return ws.WriteMessage(websocket.TextMessage, data)
}

// flush writes every queued event in mailbox order.
func (h *WSHandler) flush(ws *websocket.Conn, conn model.Connector, l *slog.Logger) error {
	for {
		ev, ok := conn.Next()
		if !ok {
			return nil
		}
		if err := h.write(ws, ev); err != nil {
			l.Debug("[WS] transmission error",
				slog.Any("err", err),
				slog.String("event_id", ev.GetID()),
			)
			return err
		}
	}
}

func (h *WSHandler) writeClose(ws *websocket.Conn, code int) {
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""),
		time.Now().Add(h.cfg.WriteWait),
	)
}
