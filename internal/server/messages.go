package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"bluff-server/internal/bluff"
	"bluff-server/internal/cards"
)

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Inbound message types.
const (
	TypeCreateRoom = "create_room"
	TypeJoinRoom   = "join_room"
	TypeReconnect  = "reconnect"
	TypeGetState   = "get_state"
	TypePlay       = "play"
	TypeCheck      = "check"
	TypePass       = "pass"
	TypePing       = "ping"
)

// Outbound message types.
const (
	TypeRoomCreated           = "room_created"
	TypeRoomJoined            = "room_joined"
	TypeReconnected           = "reconnected"
	TypeAck                   = "ack"
	TypeCommandRejected       = "command_rejected"
	TypeStateUpdated          = "state_updated"
	TypeDisconnectedElsewhere = "disconnected_elsewhere"
	TypeError                 = "error"
	TypePong                  = "pong"
)

// Command is the closed set of things a client can ask for. Nothing reaches
// the registry or the game without parsing into one of these.
type Command interface {
	commandType() string
}

type CreateRoomCommand struct {
	Name     string
	MaxSeats int
}

type JoinRoomCommand struct {
	RoomCode string
	Name     string
}

type ReconnectCommand struct {
	RoomCode string
	Token    string
}

type GetStateCommand struct {
	RoomCode string
	Token    string
}

// MoveCommand is a play, check or pass against one room.
type MoveCommand struct {
	RoomCode string
	Token    string
	Move     bluff.Move
}

type PingCommand struct{}

func (CreateRoomCommand) commandType() string { return TypeCreateRoom }
func (JoinRoomCommand) commandType() string   { return TypeJoinRoom }
func (ReconnectCommand) commandType() string  { return TypeReconnect }
func (GetStateCommand) commandType() string   { return TypeGetState }
func (c MoveCommand) commandType() string     { return string(c.Move.Type) }
func (PingCommand) commandType() string       { return TypePing }

// ParseCommand decodes one inbound frame. It returns the envelope type even
// when the payload is bad, so the rejection can name the action.
func ParseCommand(data []byte) (string, Command, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", nil, fmt.Errorf("%w: malformed envelope", ErrInvalidPayload)
	}

	payload := msg.Payload
	if len(bytes.TrimSpace(payload)) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		payload = json.RawMessage("{}")
	}

	switch msg.Type {
	case TypeCreateRoom:
		var req CreateRoomRequest
		if err := decodePayload(payload, &req); err != nil {
			return msg.Type, nil, err
		}
		return msg.Type, CreateRoomCommand{Name: req.Name, MaxSeats: req.MaxSeats}, nil

	case TypeJoinRoom:
		var req JoinRoomRequest
		if err := decodePayload(payload, &req); err != nil {
			return msg.Type, nil, err
		}
		return msg.Type, JoinRoomCommand{RoomCode: req.RoomCode, Name: req.Name}, nil

	case TypeReconnect:
		var req SeatRequest
		if err := decodePayload(payload, &req); err != nil {
			return msg.Type, nil, err
		}
		return msg.Type, ReconnectCommand{RoomCode: req.RoomCode, Token: req.Token}, nil

	case TypeGetState:
		var req SeatRequest
		if err := decodePayload(payload, &req); err != nil {
			return msg.Type, nil, err
		}
		return msg.Type, GetStateCommand{RoomCode: req.RoomCode, Token: req.Token}, nil

	case TypePlay:
		var req PlayRequest
		if err := decodePayload(payload, &req); err != nil {
			return msg.Type, nil, err
		}
		return msg.Type, MoveCommand{
			RoomCode: req.RoomCode,
			Token:    req.Token,
			Move: bluff.Move{
				Type:  bluff.MovePlay,
				Rank:  req.Rank,
				Count: req.Count,
				Cards: req.Cards,
			},
		}, nil

	case TypeCheck, TypePass:
		var req SeatRequest
		if err := decodePayload(payload, &req); err != nil {
			return msg.Type, nil, err
		}
		return msg.Type, MoveCommand{
			RoomCode: req.RoomCode,
			Token:    req.Token,
			Move:     bluff.Move{Type: bluff.MoveType(msg.Type)},
		}, nil

	case TypePing:
		return msg.Type, PingCommand{}, nil

	default:
		return msg.Type, nil, fmt.Errorf("%w: %q", ErrUnknownCommand, msg.Type)
	}
}

// UnmarshalJSON requires the rank key. The zero Rank is Two, so a missing
// rank would otherwise read as a claim of twos.
func (r *PlayRequest) UnmarshalJSON(data []byte) error {
	type wire PlayRequest
	var aux struct {
		wire
		Rank *cards.Rank `json:"rank"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Rank == nil {
		return errors.New("rank is required")
	}
	*r = PlayRequest(aux.wire)
	r.Rank = *aux.Rank
	return nil
}

func decodePayload(payload json.RawMessage, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
