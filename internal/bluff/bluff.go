package bluff

import (
	"fmt"

	"bluff-server/internal/cards"
)

const (
	MinSeats        = 2
	DefaultMaxSeats = 8
)

type Game struct {
	Id            string       `json:"id"`
	Seats         []*Seat      `json:"seats"`
	Pile          []cards.Card `json:"pile"`
	Discarded     []cards.Card `json:"discarded"`
	Turn          int          `json:"turn"`
	LastClaim     *Claim       `json:"lastClaim"`
	PassCount     int          `json:"passCount"`
	Log           []string     `json:"log"`
	Winner        *int         `json:"winner"`
	PendingWinner *int         `json:"pendingWinner"`
	Started       bool         `json:"started"`
	MaxSeats      int          `json:"maxSeats"`
	Dealt         int          `json:"dealt"`
	Actions       int          `json:"actions"`

	dealer Dealer
}

type Seat struct {
	Index     int          `json:"index"`
	Name      string       `json:"name"`
	Hand      []cards.Card `json:"hand"`
	Connected bool         `json:"connected"`
}

// Claim is the outstanding declaration: Count cards of Rank. Cards holds what
// was actually put on the pile and stays hidden until a check.
type Claim struct {
	Seat  int          `json:"seat"`
	Rank  cards.Rank   `json:"rank"`
	Count int          `json:"count"`
	Cards []cards.Card `json:"cards"`
}

// Lied reports whether any backing card differs from the declared rank.
func (c *Claim) Lied() bool {
	for _, card := range c.Cards {
		if card.Rank != c.Rank {
			return true
		}
	}
	return false
}

// Dealer produces one hand per seat.
type Dealer func(seatCount int) ([][]cards.Card, error)

type Option func(*Game)

func WithMaxSeats(n int) Option {
	return func(g *Game) {
		g.MaxSeats = n
	}
}

// WithDealer replaces the shuffled deal, mostly for deterministic tests.
func WithDealer(d Dealer) Option {
	return func(g *Game) {
		g.dealer = d
	}
}

func NewGame(id string, opts ...Option) *Game {
	g := &Game{
		Id:        id,
		Seats:     make([]*Seat, 0, DefaultMaxSeats),
		Pile:      make([]cards.Card, 0),
		Discarded: make([]cards.Card, 0),
		Log:       make([]string, 0),
		MaxSeats:  DefaultMaxSeats,
		dealer:    cards.Deal,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.MaxSeats < MinSeats {
		g.MaxSeats = MinSeats
	}
	if g.MaxSeats > cards.DeckSize {
		g.MaxSeats = cards.DeckSize
	}
	return g
}

// AddSeat seats a new player and re-deals every hand. Only legal before the
// first move.
func (g *Game) AddSeat(name string) (int, error) {
	if g.Started {
		return -1, ErrRoomStarted
	}
	if len(g.Seats) >= g.MaxSeats {
		return -1, fmt.Errorf("%w (%d/%d seats)", ErrRoomFull, len(g.Seats), g.MaxSeats)
	}

	index := len(g.Seats)
	g.Seats = append(g.Seats, &Seat{
		Index:     index,
		Name:      name,
		Hand:      make([]cards.Card, 0),
		Connected: true,
	})

	if err := g.Deal(); err != nil {
		g.Seats = g.Seats[:index]
		return -1, err
	}

	g.Log = append(g.Log, fmt.Sprintf("%s joined the table", name))
	return index, nil
}

// Deal replaces all hands with a fresh deal and clears the table.
func (g *Game) Deal() error {
	hands, err := g.dealer(len(g.Seats))
	if err != nil {
		return err
	}

	dealt := 0
	for i, seat := range g.Seats {
		seat.Hand = hands[i]
		dealt += len(hands[i])
	}

	g.Pile = make([]cards.Card, 0)
	g.Discarded = make([]cards.Card, 0)
	g.LastClaim = nil
	g.PassCount = 0
	g.PendingWinner = nil
	g.Turn = 0
	g.Dealt = dealt
	return nil
}

func (g *Game) IsOver() bool {
	return g.Winner != nil
}

func (g *Game) Seat(index int) (*Seat, bool) {
	if index < 0 || index >= len(g.Seats) {
		return nil, false
	}
	return g.Seats[index], true
}

// SetConnected flips the connection flag only; the seat stays in rotation.
func (g *Game) SetConnected(index int, connected bool) {
	if seat, ok := g.Seat(index); ok {
		seat.Connected = connected
	}
}

func (g *Game) AnyConnected() bool {
	for _, seat := range g.Seats {
		if seat.Connected {
			return true
		}
	}
	return false
}

// LogTail returns at most n trailing log entries.
func (g *Game) LogTail(n int) []string {
	if n <= 0 || n >= len(g.Log) {
		return append([]string(nil), g.Log...)
	}
	return append([]string(nil), g.Log[len(g.Log)-n:]...)
}

// CheckInvariants verifies card conservation and the turn pointer.
func (g *Game) CheckInvariants() error {
	total := len(g.Pile) + len(g.Discarded)
	seen := make(map[cards.Card]bool, cards.DeckSize)
	count := func(cs []cards.Card) error {
		for _, c := range cs {
			if seen[c] {
				return fmt.Errorf("card %s held twice", c)
			}
			seen[c] = true
		}
		return nil
	}

	for _, seat := range g.Seats {
		total += len(seat.Hand)
		if err := count(seat.Hand); err != nil {
			return err
		}
	}
	if err := count(g.Pile); err != nil {
		return err
	}
	if err := count(g.Discarded); err != nil {
		return err
	}

	if total != g.Dealt {
		return fmt.Errorf("card count %d, dealt %d", total, g.Dealt)
	}
	if len(g.Seats) > 0 && (g.Turn < 0 || g.Turn >= len(g.Seats)) {
		return fmt.Errorf("turn %d out of range for %d seats", g.Turn, len(g.Seats))
	}
	if g.LastClaim == nil && len(g.Pile) != 0 {
		return fmt.Errorf("pile holds %d cards without a claim", len(g.Pile))
	}
	return nil
}
