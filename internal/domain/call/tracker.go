// Package call tracks the lifecycle status of calls relayed by the hub.
package call

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/webitel/im-signaling-service/internal/domain/model"
)

type Policy string

const (
	// PolicyPermissive overwrites the status on any transition, tolerating
	// network reordering (accept after end and the like).
	PolicyPermissive Policy = "permissive"
	// PolicyStrict rejects transitions outside the lifecycle graph.
	PolicyStrict Policy = "strict"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyPermissive, PolicyStrict:
		return p, nil
	case "":
		return PolicyPermissive, nil
	default:
		return "", fmt.Errorf("unknown call policy %q", s)
	}
}

// Call is the tracked state of one call identifier.
type Call struct {
	ID         string
	Status     Status
	CallerID   model.UserID
	ReceiverID model.UserID
	RoomKey    model.RoomKey
	StartedAt  time.Time
	UpdatedAt  time.Time
}

// Transition is one lifecycle step requested by an inbound call event.
type Transition struct {
	CallID     string
	To         Status
	CallerID   model.UserID
	ReceiverID model.UserID
	RoomKey    model.RoomKey
}

// Tracker keeps call records in an expirable LRU: records are never deleted
// explicitly, stale ones age out.
type Tracker struct {
	mu     sync.Mutex
	calls  *expirable.LRU[string, Call]
	policy Policy
	now    func() time.Time
}

func NewTracker(opts ...Option) *Tracker {
	o := options{
		size:   10000,
		ttl:    time.Hour,
		policy: PolicyPermissive,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Tracker{
		// [MEMORY_MANAGEMENT] Bounded retention of finished calls.
		calls:  expirable.NewLRU[string, Call](o.size, nil, o.ttl),
		policy: o.policy,
		now:    o.now,
	}
}

// Apply moves a call to tr.To and stamps the update time.
func (t *Tracker) Apply(tr Transition) (Call, error) {
	if tr.CallID == "" {
		return Call{}, fmt.Errorf("call transition to %s without id: %w", tr.To, ErrCallNotFound)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if t.now != nil {
		now = t.now()
	}

	c, found := t.calls.Get(tr.CallID)

	if t.policy == PolicyStrict {
		if !found && tr.To != StatusRinging {
			return Call{}, fmt.Errorf("call %s -> %s: %w", tr.CallID, tr.To, ErrCallNotFound)
		}
		if !CanTransition(c.Status, tr.To) {
			return c, fmt.Errorf("call %s: %s -> %s: %w", tr.CallID, c.Status, tr.To, ErrInvalidTransition)
		}
	}

	if !found {
		c = Call{ID: tr.CallID, StartedAt: now}
	}

	// [PARTICIPANTS] A start defines them; later steps only fill gaps, since
	// the accepting side reports itself as sender.
	if tr.To == StatusRinging || c.CallerID == "" {
		if tr.CallerID != "" {
			c.CallerID = tr.CallerID
		}
		if tr.ReceiverID != "" {
			c.ReceiverID = tr.ReceiverID
		}
	}
	if tr.RoomKey != "" {
		c.RoomKey = tr.RoomKey
	}

	c.Status = tr.To
	c.UpdatedAt = now
	t.calls.Add(tr.CallID, c)

	return c, nil
}

// Get returns the tracked call.
func (t *Tracker) Get(callID string) (Call, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls.Get(callID)
}

// Len returns the number of tracked calls, terminal ones included.
func (t *Tracker) Len() int {
	return t.calls.Len()
}

func (t *Tracker) Policy() Policy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.policy
}

func (t *Tracker) SetPolicy(p Policy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.policy = p
}
