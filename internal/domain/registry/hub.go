/*
Package registry provides the identity side of the signaling hub.

Key Architectural Concepts:
  - Virtual Cells: Every registered user is represented by an isolated 'Cell' that
    groups all concurrent connections (tabs, devices) for that identity.
  - Live Sessions: Every connection, registered or not, is tracked so the router
    can fall back to a global broadcast.
  - Concurrency Management: Lock-free lookups via sync.Map and fine-grained
    per-user locking within cells; no lock is held while sending.
  - Reclamation: A cell is removed as soon as its last connection leaves.
*/
package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/webitel/im-signaling-service/internal/domain/event"
	"github.com/webitel/im-signaling-service/internal/domain/model"
)

// Hubber defines the gateway for connection/identity management and delivery.
type Hubber interface {
	Connect(ctx context.Context, meta model.ConnectMetadata) model.Connector
	Disconnect(conn model.Connector)

	Register(userID model.UserID, conn model.Connector)
	Unregister(conn model.Connector)
	Lookup(userID model.UserID) []model.Connector
	IsConnected(userID model.UserID) bool

	Connections() []model.Connector
	Deliver(ev event.Eventer, targets []model.Connector) int
	Broadcast(ev event.Eventer) int

	Stats() model.HubStats
	Shutdown()
}

type hubConfig struct {
	mailboxSize int
	sendTimeout time.Duration
}

// Hub implements a [SCALABLE_REGISTRY] using Virtual Cell pattern.
type Hub struct {
	// cells stores Map[model.UserID]*Cell. Optimized for [READ_HEAVY] workloads.
	cells sync.Map
	// sessions stores Map[uuid.UUID]model.Connector of every live connection.
	sessions sync.Map

	config    hubConfig
	startedAt time.Time
	dropped   atomic.Uint64
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		config: hubConfig{
			mailboxSize: 256,
			sendTimeout: 50 * time.Millisecond,
		},
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect creates a connection handle and adds it to the live set.
func (h *Hub) Connect(ctx context.Context, meta model.ConnectMetadata) model.Connector {
	conn := model.NewConnector(ctx, meta, h.config.mailboxSize)
	h.sessions.Store(conn.GetID(), conn)
	return conn
}

// Disconnect removes the connection from the live set. Identity cleanup is Unregister.
func (h *Hub) Disconnect(conn model.Connector) {
	if conn == nil {
		return
	}
	h.sessions.Delete(conn.GetID())
}

// Register ensures [IDEMPOTENT] cell creation and attaches the connection.
// An empty user id is a no-op.
func (h *Hub) Register(userID model.UserID, conn model.Connector) {
	if userID == "" || conn == nil {
		return
	}
	conn.BindUser(userID)

	for {
		val, ok := h.cells.Load(userID)
		if !ok {
			// [LAZY_INIT] Create cell only when first connection arrives.
			val, _ = h.cells.LoadOrStore(userID, NewCell(userID))
		}
		cell := val.(*Cell)
		if cell.Attach(conn) {
			return
		}
		// [SEALED] The last session just left; help evict and retry on a fresh cell.
		h.cells.CompareAndDelete(userID, cell)
	}
}

// Unregister performs [GRACEFUL_RECLAMATION]: the connection leaves every user
// it was bound to and empty cells are purged. Unknown connections are a no-op.
func (h *Hub) Unregister(conn model.Connector) {
	if conn == nil {
		return
	}
	for _, userID := range conn.Users() {
		if val, ok := h.cells.Load(userID); ok {
			cell := val.(*Cell)
			if cell.Detach(conn.GetID()) {
				h.cells.CompareAndDelete(userID, cell)
			}
		}
		conn.UnbindUser(userID)
	}
}

// Lookup returns the live connections of a user, empty if none.
func (h *Hub) Lookup(userID model.UserID) []model.Connector {
	if val, ok := h.cells.Load(userID); ok {
		return val.(*Cell).Sessions()
	}
	return nil
}

func (h *Hub) IsConnected(userID model.UserID) bool {
	val, ok := h.cells.Load(userID)
	return ok && val.(*Cell).Len() > 0
}

// Connections returns a snapshot of every live connection.
func (h *Hub) Connections() []model.Connector {
	var res []model.Connector
	h.sessions.Range(func(_, v any) bool {
		res = append(res, v.(model.Connector))
		return true
	})
	return res
}

// Deliver pushes one event into each target mailbox. Fire-and-forget:
// a dead or saturated target only bumps the drop counter.
func (h *Hub) Deliver(ev event.Eventer, targets []model.Connector) int {
	delivered := 0
	for _, conn := range targets {
		if conn.Send(ev, h.config.sendTimeout) {
			delivered++
			continue
		}
		h.dropped.Add(1)
	}
	return delivered
}

// Broadcast delivers to every live connection.
func (h *Hub) Broadcast(ev event.Eventer) int {
	return h.Deliver(ev, h.Connections())
}

func (h *Hub) Stats() model.HubStats {
	stats := model.HubStats{
		DroppedEvents: h.dropped.Load(),
		Uptime:        time.Since(h.startedAt),
	}
	h.cells.Range(func(_, _ any) bool {
		stats.TotalUsers++
		return true
	})
	h.sessions.Range(func(_, _ any) bool {
		stats.TotalConnections++
		return true
	})
	return stats
}

// Shutdown notifies and closes every live connection.
func (h *Hub) Shutdown() {
	bye := event.NewSystemEvent(model.EventDisconnected, event.Disconnected, event.PriorityHigh, &model.DisconnectedPayload{
		Reason: "server_shutdown",
		Code:   "SHUTDOWN",
	})
	h.sessions.Range(func(key, v any) bool {
		conn := v.(model.Connector)
		conn.Send(bye, 0)
		conn.Close()
		h.sessions.Delete(key)
		return true
	})
}
