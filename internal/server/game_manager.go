package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bluff-server/internal/bluff"
)

// GameManager owns every live room. The map is guarded by mu; each room is
// guarded by its own lock, taken before mu whenever both are needed.
type GameManager struct {
	rooms    map[string]*Room
	sessions *SessionManager
	policy   RoomPolicy
	mu       sync.RWMutex
}

type RoomPolicy struct {
	MaxSeats        int
	EmptyRoomGrace  time.Duration
	IdleRoomTimeout time.Duration // 0 keeps idle rooms forever
	Dealer          bluff.Dealer  // nil deals a shuffled deck
	Now             func() time.Time
}

type Room struct {
	Code       string
	Game       *bluff.Game
	Players    []PlayerSlot
	CreatedAt  time.Time
	UpdatedAt  time.Time // last accepted join or move
	EmptySince time.Time // zero while any seat is connected
	FinishedAt time.Time
	LastCheck  *bluff.CheckResult // outcome of the latest move if it was a check

	closed bool
	mu     sync.Mutex
}

type PlayerSlot struct {
	Name     string
	Token    string
	JoinedAt time.Time
}

// Ticket is what a new seat needs to address its room.
type Ticket struct {
	RoomCode string
	Seat     int
	Token    string
}

// ClosedRoom describes a destroyed room and the tokens it invalidated.
type ClosedRoom struct {
	Code   string
	Tokens []string
}

// Commit runs after an accepted change while the room is still locked.
// Messages it enqueues are therefore ordered with the room's history.
type Commit func(room *Room, seat int)

func NewGameManager(policy RoomPolicy, sessions *SessionManager) *GameManager {
	if policy.MaxSeats <= 0 {
		policy.MaxSeats = bluff.DefaultMaxSeats
	}
	if policy.Now == nil {
		policy.Now = time.Now
	}
	if sessions == nil {
		sessions = NewSessionManager()
	}
	return &GameManager{
		rooms:    make(map[string]*Room),
		sessions: sessions,
		policy:   policy,
	}
}

// CreateRoom opens a room with name in seat 0. maxSeats <= 0 uses the
// server limit; larger values are capped by it.
func (gm *GameManager) CreateRoom(name string, maxSeats int, commit Commit) (Ticket, error) {
	name, err := ValidateName(name)
	if err != nil {
		return Ticket{}, err
	}

	seats := gm.policy.MaxSeats
	if maxSeats > 0 && maxSeats < seats {
		seats = maxSeats
	}
	opts := []bluff.Option{bluff.WithMaxSeats(seats)}
	if gm.policy.Dealer != nil {
		opts = append(opts, bluff.WithDealer(gm.policy.Dealer))
	}

	now := gm.policy.Now()
	token := uuid.NewString()

	// The room is not reachable until it is in the map, so seating the
	// creator does not need the room lock.
	gm.mu.Lock()
	code := GenerateRoomCode(func(c string) bool {
		_, exists := gm.rooms[c]
		return exists
	})
	room := &Room{
		Code:      code,
		Game:      bluff.NewGame(code, opts...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	seat, err := room.Game.AddSeat(name)
	if err != nil {
		gm.mu.Unlock()
		return Ticket{}, err
	}
	room.Players = append(room.Players, PlayerSlot{Name: name, Token: token, JoinedAt: now})
	gm.sessions.StoreSession(SessionInfo{Token: token, RoomCode: code, Seat: seat, Name: name})
	gm.rooms[code] = room
	gm.mu.Unlock()

	room.mu.Lock()
	defer room.mu.Unlock()
	if commit != nil && !room.closed {
		commit(room, seat)
	}

	return Ticket{RoomCode: code, Seat: seat, Token: token}, nil
}

func (gm *GameManager) JoinRoom(code, name string, commit Commit) (Ticket, error) {
	name, err := ValidateName(name)
	if err != nil {
		return Ticket{}, err
	}

	room, err := gm.lockRoom(code)
	if err != nil {
		return Ticket{}, err
	}
	defer room.mu.Unlock()

	for _, slot := range room.Players {
		if slot.Name == name {
			return Ticket{}, fmt.Errorf("%w: %q is already taken in this room", ErrInvalidName, name)
		}
	}

	seat, err := room.Game.AddSeat(name)
	if err != nil {
		return Ticket{}, err
	}

	now := gm.policy.Now()
	token := uuid.NewString()
	room.Players = append(room.Players, PlayerSlot{Name: name, Token: token, JoinedAt: now})
	room.UpdatedAt = now
	room.EmptySince = time.Time{}
	gm.sessions.StoreSession(SessionInfo{Token: token, RoomCode: room.Code, Seat: seat, Name: name})

	if commit != nil {
		commit(room, seat)
	}
	return Ticket{RoomCode: room.Code, Seat: seat, Token: token}, nil
}

// ResolveSeat returns the seat token was issued for in room code.
func (gm *GameManager) ResolveSeat(code, token string) (int, error) {
	room, err := gm.lockRoom(code)
	if err != nil {
		return -1, err
	}
	defer room.mu.Unlock()

	return gm.resolve(room, token)
}

// WithSeat runs fn on the room once token resolves, under the room lock.
func (gm *GameManager) WithSeat(code, token string, fn func(room *Room, seat int)) error {
	room, err := gm.lockRoom(code)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	seat, err := gm.resolve(room, token)
	if err != nil {
		return err
	}
	fn(room, seat)
	return nil
}

// Reconnect marks the token's seat connected again. Hands, turn and pile are
// untouched.
func (gm *GameManager) Reconnect(code, token string, commit Commit) (int, error) {
	room, err := gm.lockRoom(code)
	if err != nil {
		return -1, err
	}
	defer room.mu.Unlock()

	seat, err := gm.resolve(room, token)
	if err != nil {
		return -1, err
	}
	room.MarkConnected(seat)

	if commit != nil {
		commit(room, seat)
	}
	return seat, nil
}

// MarkDisconnected clears the seat's connected flag, unless rebound reports
// that another connection has picked the token up meanwhile. When that leaves
// the room empty and there is no grace period, the room is destroyed on the
// spot and the returned ClosedRoom is non-nil.
func (gm *GameManager) MarkDisconnected(code, token string, rebound func(token string) bool, commit Commit) (*ClosedRoom, error) {
	room, err := gm.lockRoom(code)
	if err != nil {
		return nil, err
	}
	defer room.mu.Unlock()

	seat, err := gm.resolve(room, token)
	if err != nil {
		return nil, err
	}
	if rebound != nil && rebound(token) {
		return nil, nil
	}

	room.Game.SetConnected(seat, false)
	if !room.Game.AnyConnected() {
		room.EmptySince = gm.policy.Now()
		if gm.policy.EmptyRoomGrace == 0 {
			closed := gm.destroyLocked(room)
			return &closed, nil
		}
	}

	if commit != nil {
		commit(room, seat)
	}
	return nil, nil
}

// Apply runs move for the token's seat. Move.Seat is always overwritten with
// the resolved seat. A rejected move leaves the room untouched and skips
// commit.
func (gm *GameManager) Apply(code, token string, move bluff.Move, commit Commit) (int, error) {
	room, err := gm.lockRoom(code)
	if err != nil {
		return -1, err
	}
	defer room.mu.Unlock()

	seat, err := gm.resolve(room, token)
	if err != nil {
		return -1, err
	}

	move.Seat = seat
	result, err := room.Game.ExecuteMove(move)
	if err != nil {
		return seat, err
	}
	room.LastCheck = result

	now := gm.policy.Now()
	room.UpdatedAt = now
	if room.Game.IsOver() && room.FinishedAt.IsZero() {
		room.FinishedAt = now
	}

	if commit != nil {
		commit(room, seat)
	}
	return seat, nil
}

// Lobby describes a room without credentials.
func (gm *GameManager) Lobby(code string) (LobbyInfo, error) {
	room, err := gm.lockRoom(code)
	if err != nil {
		return LobbyInfo{}, err
	}
	defer room.mu.Unlock()

	seats := make([]LobbySeat, 0, len(room.Game.Seats))
	for _, s := range room.Game.Seats {
		seats = append(seats, LobbySeat{Seat: s.Index, Name: s.Name, Connected: s.Connected})
	}
	return LobbyInfo{
		RoomCode: room.Code,
		Seats:    seats,
		MaxSeats: room.Game.MaxSeats,
		Started:  room.Game.Started,
		GameOver: room.Game.IsOver(),
	}, nil
}

// Destroy removes a room and invalidates its tokens.
func (gm *GameManager) Destroy(code string) (ClosedRoom, error) {
	room, err := gm.lockRoom(code)
	if err != nil {
		return ClosedRoom{}, err
	}
	defer room.mu.Unlock()

	return gm.destroyLocked(room), nil
}

// Sweep destroys rooms that have been empty past the grace period or idle
// past the idle timeout.
func (gm *GameManager) Sweep(now time.Time) []ClosedRoom {
	gm.mu.RLock()
	rooms := make([]*Room, 0, len(gm.rooms))
	for _, room := range gm.rooms {
		rooms = append(rooms, room)
	}
	gm.mu.RUnlock()

	var closed []ClosedRoom
	for _, room := range rooms {
		room.mu.Lock()
		if !room.closed && gm.expired(room, now) {
			closed = append(closed, gm.destroyLocked(room))
		}
		room.mu.Unlock()
	}
	return closed
}

func (gm *GameManager) RoomCount() int {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return len(gm.rooms)
}

func (gm *GameManager) expired(room *Room, now time.Time) bool {
	if !room.EmptySince.IsZero() && !room.Game.AnyConnected() &&
		now.Sub(room.EmptySince) >= gm.policy.EmptyRoomGrace {
		return true
	}
	return gm.policy.IdleRoomTimeout > 0 && now.Sub(room.UpdatedAt) >= gm.policy.IdleRoomTimeout
}

// lockRoom returns the room locked. Callers must unlock it.
func (gm *GameManager) lockRoom(code string) (*Room, error) {
	code = NormalizeRoomCode(code)
	if err := ValidateRoomCode(code); err != nil {
		return nil, err
	}

	gm.mu.RLock()
	room, exists := gm.rooms[code]
	gm.mu.RUnlock()

	if !exists {
		return nil, ErrRoomNotFound
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// resolve needs the room lock.
func (gm *GameManager) resolve(room *Room, token string) (int, error) {
	if token == "" {
		return -1, ErrInvalidCredential
	}
	session, err := gm.sessions.GetSession(token)
	if err != nil || session.RoomCode != room.Code {
		return -1, ErrInvalidCredential
	}
	if session.Seat < 0 || session.Seat >= len(room.Players) || room.Players[session.Seat].Token != token {
		return -1, ErrInvalidCredential
	}
	return session.Seat, nil
}

// destroyLocked needs the room lock.
func (gm *GameManager) destroyLocked(room *Room) ClosedRoom {
	room.closed = true

	gm.mu.Lock()
	if gm.rooms[room.Code] == room {
		delete(gm.rooms, room.Code)
	}
	gm.mu.Unlock()

	return ClosedRoom{Code: room.Code, Tokens: gm.sessions.RemoveRoom(room.Code)}
}

// MarkConnected flags the seat connected and reports whether it was not
// already. Needs the room lock.
func (r *Room) MarkConnected(seat int) bool {
	s, ok := r.Game.Seat(seat)
	if !ok || s.Connected {
		return false
	}
	r.Game.SetConnected(seat, true)
	r.EmptySince = time.Time{}
	return true
}
