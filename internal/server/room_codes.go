package server

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

const roomCodeLength = 4

// GenerateRoomCode returns a code that taken reports as free.
func GenerateRoomCode(taken func(code string) bool) string {
	for {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = 'A' + byte(rand.IntN(26))
		}
		roomCode := string(code)

		if !taken(roomCode) {
			return roomCode
		}
	}
}

func ValidateRoomCode(code string) error {
	if len(code) != roomCodeLength {
		return fmt.Errorf("%w: must be exactly %d characters", ErrInvalidRoomCode, roomCodeLength)
	}

	code = strings.ToUpper(code)
	for _, ch := range code {
		if ch < 'A' || ch > 'Z' {
			return fmt.Errorf("%w: must contain only letters A-Z", ErrInvalidRoomCode)
		}
	}

	return nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
