package server

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrAlreadyJoined       = errors.New("connection already joined a room")
	ErrNotInRoom           = errors.New("connection is not an active participant of the room")
	ErrMalformedPayload    = errors.New("malformed payload")
	ErrUnknownEvent        = errors.New("unknown event type")

	// errRoomClosed is returned by a room that was reclaimed by the registry
	// after its last participant left. Callers resolve the room again.
	errRoomClosed = errors.New("room closed")
	errInternal   = errors.New("internal error")
)

const (
	CodeNotFound       = "not_found"
	CodeNotInRoom      = "not_in_room"
	CodeAlreadyJoined  = "already_joined"
	CodeInvalidMessage = "invalid_message"
	CodeInternal       = "internal_error"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrParticipantNotFound):
		return CodeNotFound
	case errors.Is(err, ErrNotInRoom):
		return CodeNotInRoom
	case errors.Is(err, ErrAlreadyJoined):
		return CodeAlreadyJoined
	case errors.Is(err, ErrMalformedPayload), errors.Is(err, ErrUnknownEvent):
		return CodeInvalidMessage
	default:
		return CodeInternal
	}
}
