package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-signaling-service/internal/domain/model"
)

// Celler defines the internal API for user-specific session groups.
type Celler interface {
	Attach(conn model.Connector) bool
	Detach(connID uuid.UUID) bool
	Sessions() []model.Connector
	Len() int
}

var _ Celler = (*Cell)(nil)

// Cell groups every live connection authenticated as one user.
type Cell struct {
	// [IDENTITY]
	// The identifier of the user managed by this cell.
	userID model.UserID

	// [SESSIONS]
	// All transport channels (tabs, devices) of the user.
	sessions map[uuid.UUID]model.Connector

	// [CONCURRENCY_CONTROL]
	// Per-user lock; fan-out reads outnumber register/unregister writes.
	mu sync.RWMutex

	// [SEAL]
	// Set when the last session detaches. A sealed cell is about to be removed
	// from the hub and refuses new sessions, the caller retries on a fresh cell.
	sealed bool

	// lastActivityAt records the last membership change.
	lastActivityAt time.Time
}

func NewCell(userID model.UserID) *Cell {
	return &Cell{
		userID:         userID,
		sessions:       make(map[uuid.UUID]model.Connector),
		lastActivityAt: time.Now(),
	}
}

// Attach adds a session. Idempotent. Returns false if the cell is sealed.
func (c *Cell) Attach(conn model.Connector) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return false
	}
	c.lastActivityAt = time.Now()
	c.sessions[conn.GetID()] = conn
	return true
}

// Detach removes a session and reports whether the cell became empty (and sealed).
func (c *Cell) Detach(connID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, connID)
	c.lastActivityAt = time.Now()
	if len(c.sessions) == 0 {
		c.sealed = true
	}
	return c.sealed
}

// Sessions returns a snapshot, safe to iterate without the lock.
func (c *Cell) Sessions() []model.Connector {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]model.Connector, 0, len(c.sessions))
	for _, conn := range c.sessions {
		res = append(res, conn)
	}
	return res
}

func (c *Cell) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}
