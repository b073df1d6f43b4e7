package model

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-signaling-service/internal/domain/event"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR EXTERNAL LAYERS (REGISTRY/ROOMS/ROUTER)
// This allows mocking and decoupling from the concrete implementation
type Connector interface {
	GetID() uuid.UUID
	GetMetadata() ConnectMetadata

	// Identity bookkeeping, owned by the identity registry.
	Users() []UserID
	BindUser(userID UserID) bool
	UnbindUser(userID UserID)

	// Room bookkeeping, owned by the room directory.
	RoomKey() RoomKey
	SetRoomKey(key RoomKey) (prev RoomKey)
	ClearRoomKey(key RoomKey) bool

	Send(ev event.Eventer, timeout time.Duration) bool // Thread-safe send with backpressure handling
	Ready() <-chan struct{}                            // Signalled after an event is queued
	Next() (event.Eventer, bool)                       // Pops the oldest queued event
	Pending() int
	Done() <-chan struct{}
	Dropped() uint64
	Close() // Terminate connection and release resources
}

// [METADATA] EXPORTED FOR TRANSPORT AND ANALYTICS LAYERS
type ConnectMetadata struct {
	Transport string
	RemoteIP  string
	UserAgent string
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	id        uuid.UUID
	metadata  ConnectMetadata
	createdAt time.Time
	ctx       context.Context
	cancelFn  context.CancelFunc
	closeOnce sync.Once // [PROTECTION]

	// [MAILBOX] guarded by qmu. ready and space are edge signals of capacity 1.
	qmu   sync.Mutex
	queue *mailbox
	ready chan struct{}
	space chan struct{}

	// [STATE] guarded by mu; leaf lock, never held while calling out.
	mu      sync.Mutex
	users   []UserID
	roomKey RoomKey

	droppedCount uint64 // [ATOMIC_FIELD]
}

// NewConnector creates a fresh connection handle. Handles are never reused.
func NewConnector(ctx context.Context, meta ConnectMetadata, bufferSize int) Connector {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	childCtx, cancel := context.WithCancel(ctx)

	return &connect{
		id:        uuid.New(),
		metadata:  meta,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		queue:     newMailbox(bufferSize),
		ready:     make(chan struct{}, 1),
		space:     make(chan struct{}, 1),
	}
}

// --- IMPLEMENTATION OF CONNECTOR INTERFACE ---

func (c *connect) GetID() uuid.UUID             { return c.id }
func (c *connect) GetMetadata() ConnectMetadata { return c.metadata }

func (c *connect) Users() []UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.users)
}

// BindUser records ownership. Returns false if the user was already bound.
func (c *connect) BindUser(userID UserID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.users, userID) {
		return false
	}
	c.users = append(c.users, userID)
	return true
}

func (c *connect) UnbindUser(userID UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = slices.DeleteFunc(c.users, func(u UserID) bool { return u == userID })
}

func (c *connect) RoomKey() RoomKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomKey
}

func (c *connect) SetRoomKey(key RoomKey) RoomKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.roomKey
	c.roomKey = key
	return prev
}

// ClearRoomKey resets the recorded room only if it still equals key.
func (c *connect) ClearRoomKey(key RoomKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roomKey != key {
		return false
	}
	c.roomKey = ""
	return true
}

// Send attempts to push an event into the mailbox.
// If the mailbox stays full for the whole timeout, it tries to evict lower priority events.
// Queued events are never reordered: eviction removes, insertion appends.
func (c *connect) Send(ev event.Eventer, timeout time.Duration) bool {
	// 1. [LIFECYCLE_GATE] Immediately abort if the underlying transport is already dead.
	select {
	case <-c.ctx.Done():
		return false
	default:
	}

	// 2. [FAST_PATH] Free slot in the mailbox.
	if c.tryPush(ev) {
		return true
	}

	if timeout <= 0 {
		return c.handleBackpressure(ev)
	}

	// 3. [PRIMARY_DELIVERY] Wait up to 'timeout' for space to smooth out transient jitter.
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return false
		case <-c.space:
			if c.tryPush(ev) {
				return true
			}
		case <-timer.C:
			// 4. [BACKPRESSURE_THRESHOLD] Persistent slow consumer.
			return c.handleBackpressure(ev)
		}
	}
}

func (c *connect) tryPush(ev event.Eventer) bool {
	c.qmu.Lock()
	if c.queue.full() {
		c.qmu.Unlock()
		return false
	}
	c.queue.push(ev)
	c.qmu.Unlock()

	notify(c.ready)
	return true
}

// handleBackpressure manages full buffers by dropping low-priority events.
func (c *connect) handleBackpressure(ev event.Eventer) bool {
	// If the incoming event is low priority, drop it immediately to save buffer for high priority
	if ev.GetPriority() <= event.PriorityLow {
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}

	c.qmu.Lock()
	switch {
	case !c.queue.full():
		// The writer drained the mailbox in between.
	case c.queue.evictBelow(ev.GetPriority()):
		atomic.AddUint64(&c.droppedCount, 1) // the evicted event is lost
	default:
		// Nothing cheaper to give up: the newcomer is dropped, the queue stays as it is.
		c.qmu.Unlock()
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}
	c.queue.push(ev)
	c.qmu.Unlock()

	notify(c.ready)
	return true
}

func (c *connect) Next() (event.Eventer, bool) {
	c.qmu.Lock()
	ev, ok := c.queue.pop()
	c.qmu.Unlock()

	if ok {
		notify(c.space)
	}
	return ev, ok
}

func (c *connect) Pending() int {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return c.queue.count()
}

func (c *connect) Ready() <-chan struct{} { return c.ready }
func (c *connect) Done() <-chan struct{}  { return c.ctx.Done() }
func (c *connect) Dropped() uint64        { return atomic.LoadUint64(&c.droppedCount) }

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Close terminates the session. Events already queued stay readable through Next
// so the transport can flush them; later sends observe Done() and fail.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()
	})
}
