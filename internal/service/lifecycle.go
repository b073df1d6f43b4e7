package service

import (
	"context"
	"log/slog"

	"github.com/webitel/im-signaling-service/internal/domain/event"
	"github.com/webitel/im-signaling-service/internal/domain/model"
	"github.com/webitel/im-signaling-service/internal/domain/registry"
	"github.com/webitel/im-signaling-service/internal/domain/room"
	"github.com/webitel/im-signaling-service/internal/service/mapper"
)

// [LIFECYCLE_SERVICE] PRIMARY INTERFACE FOR TRANSPORT HANDLERS (Websocket/Long-poll)
type Lifecycler interface {
	Connect(ctx context.Context, meta model.ConnectMetadata) model.Connector
	Register(conn model.Connector, userID model.UserID) bool
	JoinUserChannel(conn model.Connector, userID model.UserID) bool
	JoinRoom(conn model.Connector, senderID, receiverID model.UserID) (model.RoomKey, bool)
	LeaveRoom(conn model.Connector, roomID model.RoomKey) bool
	Disconnect(conn model.Connector)
	Broadcast(ev event.Eventer) int
	Shutdown()
}

var _ Lifecycler = (*Lifecycle)(nil)

// Lifecycle owns connection state transitions across the identity registry
// and the room directory. Notifications are delivered after the directory
// released its locks.
type Lifecycle struct {
	hub    registry.Hubber
	rooms  *room.Directory
	logger *slog.Logger
}

func NewLifecycle(hub registry.Hubber, rooms *room.Directory, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		hub:    hub,
		rooms:  rooms,
		logger: logger,
	}
}

// [CONNECT] HANDLES CONNECTION INITIATION
// The fresh connection is anonymous; the transport decides on a handshake.
func (l *Lifecycle) Connect(ctx context.Context, meta model.ConnectMetadata) model.Connector {
	conn := l.hub.Connect(ctx, meta)

	l.logger.Debug("CONNECTION_OPENED",
		"conn_id", conn.GetID(),
		"transport", meta.Transport,
		"remote_ip", meta.RemoteIP,
	)
	return conn
}

// Register binds a user identity to conn. A missing user id is a no-op.
func (l *Lifecycle) Register(conn model.Connector, userID model.UserID) bool {
	if conn == nil || userID == "" {
		return false
	}
	l.hub.Register(userID, conn)
	l.logger.Debug("USER_REGISTERED", "user_id", userID, "conn_id", conn.GetID())
	return true
}

// JoinUserChannel subscribes conn to the personal channel of userID.
// Personal channels are the identity registry entries, so this is Register.
func (l *Lifecycle) JoinUserChannel(conn model.Connector, userID model.UserID) bool {
	return l.Register(conn, userID)
}

// JoinRoom puts conn into the two-party room of sender and receiver.
// An anonymous connection is registered as the sender.
func (l *Lifecycle) JoinRoom(conn model.Connector, senderID, receiverID model.UserID) (model.RoomKey, bool) {
	if conn == nil {
		return "", false
	}
	key, ok := room.Key(senderID, receiverID)
	if !ok {
		l.logger.Debug("ROOM_JOIN_SKIPPED: participants_missing",
			"conn_id", conn.GetID(),
			"sender_id", senderID,
			"receiver_id", receiverID,
		)
		return "", false
	}

	if len(conn.Users()) == 0 {
		l.hub.Register(senderID, conn)
	}

	res := l.rooms.Join(key, conn)

	// [POST_LOCK_NOTIFY] Every directory lock is released at this point.
	if res.Left != nil {
		l.notifyLeft(conn, *res.Left)
	}
	if !res.Added {
		return key, true
	}

	if others := res.Others(conn); len(others) > 0 {
		l.hub.Deliver(mapper.RoomJoinedEvent(key, conn, res.Members), others)
	}
	if res.Ready {
		l.hub.Deliver(mapper.RoomReadyEvent(key, res.Members), res.Members)
		l.logger.Debug("ROOM_READY", "room_id", key, "members", len(res.Members))
	}

	return key, true
}

// LeaveRoom removes conn from its recorded room. A supplied room id only
// acts as a guard: when it names another room the request is ignored.
func (l *Lifecycle) LeaveRoom(conn model.Connector, roomID model.RoomKey) bool {
	if conn == nil {
		return false
	}
	if roomID != "" && roomID != conn.RoomKey() {
		l.logger.Debug("ROOM_LEAVE_IGNORED: room_mismatch",
			"conn_id", conn.GetID(),
			"requested", roomID,
			"recorded", conn.RoomKey(),
		)
		return false
	}

	res, ok := l.rooms.Leave(conn)
	if !ok {
		return false
	}
	l.notifyLeft(conn, res)
	return true
}

// [DISCONNECT] TRIGGERS CLEANUP
// Every step runs regardless of the previous ones, so repeated calls are harmless.
func (l *Lifecycle) Disconnect(conn model.Connector) {
	if conn == nil {
		return
	}

	if res, ok := l.rooms.Leave(conn); ok {
		l.notifyLeft(conn, res)
	}
	l.hub.Unregister(conn)
	l.hub.Disconnect(conn)
	conn.Close()

	l.logger.Debug("CONNECTION_CLOSED",
		"conn_id", conn.GetID(),
		"dropped", conn.Dropped(),
	)
}

// Broadcast delivers ev to every live connection.
func (l *Lifecycle) Broadcast(ev event.Eventer) int {
	return l.hub.Broadcast(ev)
}

// Shutdown notifies and closes every live connection.
func (l *Lifecycle) Shutdown() {
	l.hub.Shutdown()
}

func (l *Lifecycle) notifyLeft(conn model.Connector, res room.LeaveResult) {
	if res.Deleted {
		l.logger.Debug("ROOM_DELETED", "room_id", res.Key)
		return
	}
	if len(res.Remaining) == 0 {
		return
	}
	l.hub.Deliver(mapper.RoomLeftEvent(res.Key, conn, res.Remaining), res.Remaining)
}
