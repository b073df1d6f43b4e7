package mapper

import (
	"errors"

	"github.com/webitel/im-signaling-service/internal/domain/call"
	"github.com/webitel/im-signaling-service/internal/domain/event"
	"github.com/webitel/im-signaling-service/internal/domain/model"
)

// Client-visible error codes.
const (
	CodeMissingEventName      = "MISSING_EVENT_NAME"
	CodeInvalidFrame          = "INVALID_FRAME"
	CodeUnresolvableRecipient = "UNRESOLVABLE_RECIPIENT"
	CodeNotRoomMember         = "NOT_ROOM_MEMBER"
	CodeInvalidTransition     = "INVALID_CALL_TRANSITION"
	CodeCallNotFound          = "CALL_NOT_FOUND"
	CodeInternal              = "INTERNAL"
)

// ErrorCode classifies a dispatch error for clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrMissingEventName):
		return CodeMissingEventName
	case errors.Is(err, model.ErrUnresolvableRecipient):
		return CodeUnresolvableRecipient
	case errors.Is(err, model.ErrNotRoomMember):
		return CodeNotRoomMember
	case errors.Is(err, call.ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, call.ErrCallNotFound):
		return CodeCallNotFound
	default:
		return CodeInternal
	}
}

// DispatchErrorEvent turns a dispatch error into the "error" event of its origin.
func DispatchErrorEvent(err error, eventName string) *event.SystemEvent {
	return ErrorEvent(ErrorCode(err), err.Error(), eventName)
}
