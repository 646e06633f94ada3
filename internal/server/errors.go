package server

import (
	"errors"
	"strings"

	"bluff-server/internal/bluff"
)

var (
	ErrRoomNotFound      = errors.New("ROOM_NOT_FOUND: Room not found")
	ErrInvalidCredential = errors.New("INVALID_CREDENTIAL: Token does not match a seat in this room")
	ErrInvalidName       = errors.New("INVALID_NAME: Invalid player name")
	ErrInvalidRoomCode   = errors.New("INVALID_ROOM_CODE: Invalid room code")
	ErrInvalidPayload    = errors.New("INVALID_PAYLOAD: Invalid payload")
	ErrUnknownCommand    = errors.New("UNKNOWN_COMMAND: Unknown message type")
	ErrRateLimited       = errors.New("RATE_LIMITED: Too many messages, slow down")
)

const codeInternal = "INTERNAL"

var serverErrors = []error{
	ErrRoomNotFound,
	ErrInvalidCredential,
	ErrInvalidName,
	ErrInvalidRoomCode,
	ErrInvalidPayload,
	ErrUnknownCommand,
	ErrRateLimited,
}

// ErrorCode maps any error to the code sent on the wire.
func ErrorCode(err error) string {
	if code := bluff.Code(err); code != "" {
		return code
	}
	for _, coded := range serverErrors {
		if errors.Is(err, coded) {
			return bluff.CodeOf(coded)
		}
	}
	return codeInternal
}

// errorMessage is the human half of "CODE: message". Unknown errors are not
// echoed back to clients.
func errorMessage(err error) string {
	code := ErrorCode(err)
	if code == codeInternal {
		return "Internal server error"
	}
	return strings.TrimPrefix(err.Error(), code+": ")
}
