package call

import "errors"

var (
	// ErrInvalidTransition is returned by a strict tracker for out-of-graph transitions.
	ErrInvalidTransition = errors.New("invalid call transition")
	// ErrCallNotFound is returned by a strict tracker for transitions of an unknown call.
	ErrCallNotFound = errors.New("call not found")
)
