package server

import (
	"time"

	"bluff-server/internal/bluff"
	"bluff-server/internal/cards"
)

// ============================================================================
// ERRORS (error, command_rejected)
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// tygo:generate
type CommandRejected struct {
	Action  string `json:"action"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ============================================================================
// CREATE ROOM (create_room)
// ============================================================================
// tygo:generate
type CreateRoomRequest struct {
	Name     string `json:"name"`
	MaxSeats int    `json:"maxSeats,omitempty"`
}

// Sent as room_created and room_joined.
// tygo:generate
type TicketResponse struct {
	RoomCode string `json:"roomCode"`
	Token    string `json:"token"`
	Seat     int    `json:"seat"`
}

// ============================================================================
// JOIN ROOM (join_room)
// ============================================================================
// tygo:generate
type JoinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

// ============================================================================
// SEAT-ADDRESSED COMMANDS (reconnect, get_state, check, pass)
// ============================================================================
// tygo:generate
type SeatRequest struct {
	RoomCode string `json:"roomCode"`
	Token    string `json:"token"`
}

// tygo:generate
type ReconnectResponse struct {
	RoomCode string `json:"roomCode"`
	Seat     int    `json:"seat"`
}

// ============================================================================
// PLAY (play)
// ============================================================================
// tygo:generate
type PlayRequest struct {
	RoomCode string       `json:"roomCode"`
	Token    string       `json:"token"`
	Rank     cards.Rank   `json:"rank"`
	Count    int          `json:"count"`
	Cards    []cards.Card `json:"cards"`
}

// tygo:generate
type AckResponse struct {
	Action string             `json:"action"`
	Check  *bluff.CheckResult `json:"check,omitempty"` // only for check
}

// ============================================================================
// DISPLACED CONNECTION (disconnected_elsewhere)
// ============================================================================
// tygo:generate
type DisconnectedElsewhere struct {
	Message string `json:"message"`
}

// ============================================================================
// HTTP
// ============================================================================
// tygo:generate
type LobbyInfo struct {
	RoomCode string      `json:"roomCode"`
	Seats    []LobbySeat `json:"seats"`
	MaxSeats int         `json:"maxSeats"`
	Started  bool        `json:"started"`
	GameOver bool        `json:"gameOver"`
}

// tygo:generate
type LobbySeat struct {
	Seat      int    `json:"seat"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
	Archive     string `json:"archive"`
}

// tygo:generate
type MatchSummary struct {
	RoomCode   string    `json:"roomCode"`
	Seats      []string  `json:"seats"`
	Winner     string    `json:"winner"`
	WinnerSeat int       `json:"winnerSeat"`
	Actions    int       `json:"actions"`
	CreatedAt  time.Time `json:"createdAt"`
	FinishedAt time.Time `json:"finishedAt"`
}
