package bluff

import (
	"errors"
	"strings"
)

// Every rejection is one of these. The text before the colon is the wire code.
var (
	ErrNotYourTurn        = errors.New("NOT_YOUR_TURN: It is not your turn")
	ErrInvalidSelection   = errors.New("INVALID_SELECTION: Selected cards do not match the claim or your hand")
	ErrSelfCheckForbidden = errors.New("SELF_CHECK_FORBIDDEN: You cannot check your own claim")
	ErrNoClaim            = errors.New("NO_CLAIM: There is no claim to check")
	ErrGameAlreadyOver    = errors.New("GAME_ALREADY_OVER: The game has ended")
	ErrWaitingForPlayers  = errors.New("WAITING_FOR_PLAYERS: At least two seats are needed to play")
	ErrRoomStarted        = errors.New("ROOM_STARTED: Cannot join a game in progress")
	ErrRoomFull           = errors.New("ROOM_FULL: Room is full")
	ErrUnknownMove        = errors.New("UNKNOWN_MOVE: Unknown move type")
)

var codedErrors = []error{
	ErrNotYourTurn,
	ErrInvalidSelection,
	ErrSelfCheckForbidden,
	ErrNoClaim,
	ErrGameAlreadyOver,
	ErrWaitingForPlayers,
	ErrRoomStarted,
	ErrRoomFull,
	ErrUnknownMove,
}

// Code returns the wire code of a bluff error, or "" if err is not one.
func Code(err error) string {
	for _, coded := range codedErrors {
		if errors.Is(err, coded) {
			return CodeOf(coded)
		}
	}
	return ""
}

// CodeOf extracts the "CODE" prefix from a "CODE: message" error text.
func CodeOf(err error) string {
	code, _, found := strings.Cut(err.Error(), ":")
	if !found {
		return ""
	}
	return code
}
