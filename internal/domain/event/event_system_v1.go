package event

import (
	"time"

	"github.com/google/uuid"
)

// [GUARD] Ensure compliance with the Eventer interface.
var _ Eventer = (*SystemEvent)(nil)

// SystemEvent is a generic envelope for hub signals and relayed client events.
type SystemEvent struct {
	id         string
	name       string
	kind       Kind
	priority   Priority
	occurredAt int64
	payload    any
	wireCache
}

// [INTERFACE_IMPLEMENTATION]
func (e *SystemEvent) GetID() string         { return e.id }
func (e *SystemEvent) GetName() string       { return e.name }
func (e *SystemEvent) GetKind() Kind         { return e.kind }
func (e *SystemEvent) GetPriority() Priority { return e.priority }
func (e *SystemEvent) GetOccurredAt() int64  { return e.occurredAt }
func (e *SystemEvent) GetPayload() any       { return e.payload }

// NewSystemEvent is a universal factory for creating any signal.
func NewSystemEvent(name string, kind Kind, priority Priority, payload any) *SystemEvent {
	return &SystemEvent{
		id:         uuid.NewString(),
		name:       name,
		kind:       kind,
		priority:   priority,
		occurredAt: time.Now().UnixMilli(),
		payload:    payload,
	}
}
