/*
Package room implements the room directory of the signaling hub.

A room is a two-party conversation identified by a canonical key. It exists
only while it has members: the last leave deletes it. The directory only
computes membership changes; notifying members is the caller's job, done after
every lock is released.
*/
package room

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/webitel/im-signaling-service/internal/domain/model"
)

// DefaultReadyThreshold is the member count at which a room is ready for a
// two-party session.
const DefaultReadyThreshold = 2

// Room is the member set of one key.
type Room struct {
	key     model.RoomKey
	mu      sync.Mutex
	members map[uuid.UUID]model.Connector
	// sealed marks an emptied room that is being removed from the directory.
	sealed atomic.Bool
}

func newRoom(key model.RoomKey) *Room {
	return &Room{
		key:     key,
		members: make(map[uuid.UUID]model.Connector),
	}
}

// snapshot must be called with r.mu held.
func (r *Room) snapshot() []model.Connector {
	res := make([]model.Connector, 0, len(r.members))
	for _, c := range r.members {
		res = append(res, c)
	}
	return res
}

// JoinResult describes what a join changed.
type JoinResult struct {
	Key model.RoomKey
	// Added is false when the connection already was a member.
	Added bool
	// Members is the membership right after the join, joiner included.
	Members []model.Connector
	// Ready is true only for the join that crossed the readiness threshold from below.
	Ready bool
	// Left is set when the join implicitly left a previous room.
	Left *LeaveResult
}

// Others returns members except the joining connection.
func (r JoinResult) Others(conn model.Connector) []model.Connector {
	return exclude(r.Members, conn)
}

// LeaveResult describes what a leave changed.
type LeaveResult struct {
	Key model.RoomKey
	// Remaining members after the leave; empty when the room was deleted.
	Remaining []model.Connector
	// Deleted is true when the leave emptied the room.
	Deleted bool
}

// Directory maps room keys to rooms. Structural changes take the directory
// lock; membership changes take the per-room lock only.
type Directory struct {
	mu        sync.RWMutex
	rooms     map[model.RoomKey]*Room
	threshold int
}

func NewDirectory(opts ...Option) *Directory {
	d := &Directory{
		rooms:     make(map[model.RoomKey]*Room),
		threshold: DefaultReadyThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Join adds conn to the room, creating it if absent, and records the key on
// conn. A connection holds at most one room: joining another one leaves the
// previous room first.
func (d *Directory) Join(key model.RoomKey, conn model.Connector) JoinResult {
	res := JoinResult{Key: key}
	if key == "" || conn == nil {
		return res
	}

	if prev := conn.RoomKey(); prev != "" && prev != key {
		if left, ok := d.Leave(conn); ok {
			res.Left = &left
		}
	}

	for {
		r := d.getOrCreate(key)

		r.mu.Lock()
		if r.sealed.Load() {
			// [RACE] emptied by a concurrent leave; a fresh room replaces it.
			r.mu.Unlock()
			continue
		}

		if _, ok := r.members[conn.GetID()]; ok {
			res.Members = r.snapshot()
			r.mu.Unlock()
			conn.SetRoomKey(key)
			return res
		}

		before := len(r.members)
		r.members[conn.GetID()] = conn
		after := len(r.members)
		conn.SetRoomKey(key)

		res.Added = true
		res.Members = r.snapshot()
		res.Ready = before < d.threshold && after >= d.threshold
		r.mu.Unlock()
		return res
	}
}

// Leave removes conn from the room recorded on it, never from caller supplied
// data. An emptied room is deleted. Returns false when conn has no room.
func (d *Directory) Leave(conn model.Connector) (LeaveResult, bool) {
	if conn == nil {
		return LeaveResult{}, false
	}
	key := conn.RoomKey()
	if key == "" {
		return LeaveResult{}, false
	}
	conn.ClearRoomKey(key)

	res := LeaveResult{Key: key}

	d.mu.RLock()
	r, ok := d.rooms[key]
	d.mu.RUnlock()
	if !ok {
		return res, true
	}

	r.mu.Lock()
	if _, member := r.members[conn.GetID()]; !member {
		res.Remaining = r.snapshot()
		r.mu.Unlock()
		return res, true
	}
	delete(r.members, conn.GetID())
	if len(r.members) == 0 {
		r.sealed.Store(true)
		res.Deleted = true
	}
	res.Remaining = r.snapshot()
	r.mu.Unlock()

	if res.Deleted {
		d.mu.Lock()
		if d.rooms[key] == r {
			delete(d.rooms, key)
		}
		d.mu.Unlock()
	}

	return res, true
}

// Members returns a snapshot of the room's members, empty when the room does not exist.
func (d *Directory) Members(key model.RoomKey) []model.Connector {
	d.mu.RLock()
	r, ok := d.rooms[key]
	d.mu.RUnlock()
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// IsMember reports whether conn currently belongs to the room.
func (d *Directory) IsMember(key model.RoomKey, conn model.Connector) bool {
	if conn == nil {
		return false
	}
	d.mu.RLock()
	r, ok := d.rooms[key]
	d.mu.RUnlock()
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, member := r.members[conn.GetID()]
	return member
}

// Exists reports whether a room with this key is live.
func (d *Directory) Exists(key model.RoomKey) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.rooms[key]
	return ok
}

// Len returns the number of live rooms.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

func (d *Directory) getOrCreate(key model.RoomKey) *Room {
	d.mu.RLock()
	r, ok := d.rooms[key]
	d.mu.RUnlock()
	if ok && !r.sealed.Load() {
		return r
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.rooms[key]; ok && !r.sealed.Load() {
		return r
	}
	r = newRoom(key)
	d.rooms[key] = r
	return r
}

func exclude(conns []model.Connector, skip model.Connector) []model.Connector {
	if skip == nil {
		return conns
	}
	res := make([]model.Connector, 0, len(conns))
	for _, c := range conns {
		if c.GetID() != skip.GetID() {
			res = append(res, c)
		}
	}
	return res
}
