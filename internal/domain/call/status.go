package call

import "slices"

type Status string

const (
	StatusRinging   Status = "ringing"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusEnded     Status = "ended"
)

// graph lists the legal successors of each status; "" is a call not seen yet.
var graph = map[Status][]Status{
	"":             {StatusRinging},
	StatusRinging:  {StatusAccepted, StatusRejected, StatusCancelled, StatusEnded},
	StatusAccepted: {StatusEnded},
}

// CanTransition reports whether from -> to follows the call lifecycle graph.
func CanTransition(from, to Status) bool {
	return slices.Contains(graph[from], to)
}

// IsTerminal reports whether no further transition is expected from s.
// An accepted call still ends, but never rings again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusCancelled, StatusEnded:
		return true
	}
	return false
}

// inbound event name -> resulting status
var eventStatus = map[string]Status{
	"call:start":  StatusRinging,
	"call:accept": StatusAccepted,
	"call:reject": StatusRejected,
	"call:cancel": StatusCancelled,
	"call:end":    StatusEnded,
}

// StatusOf maps an inbound call lifecycle event to the status it produces.
func StatusOf(eventName string) (Status, bool) {
	s, ok := eventStatus[eventName]
	return s, ok
}
