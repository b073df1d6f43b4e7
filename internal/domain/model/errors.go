package model

import "errors"

var (
	// ErrMissingEventName is returned for envelopes without an event name.
	ErrMissingEventName = errors.New("missing event name")
	// ErrUnresolvableRecipient is returned when no fan-out target can be derived
	// and the fallback policy is "reject".
	ErrUnresolvableRecipient = errors.New("unresolvable recipient")
	// ErrNotRoomMember is returned when a connection addresses a room it has not joined.
	ErrNotRoomMember = errors.New("connection is not a member of the room")
)
