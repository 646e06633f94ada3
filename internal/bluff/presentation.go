package bluff

import "bluff-server/internal/cards"

// ClientState is the game as one seat is allowed to see it: its own hand in
// full, every other hand as a count, and the claim without its cards.
type ClientState struct {
	RoomCode     string      `json:"roomCode"`
	You          int         `json:"you"`
	Seats        []SeatState `json:"seats"`
	PileCount    int         `json:"pileCount"`
	DiscardCount int         `json:"discardCount"`
	Turn         int         `json:"turn"`
	LastClaim    *ClaimState `json:"lastClaim"` // nil when nothing is at risk
	Log          []string    `json:"log"`
	Winner       *int        `json:"winner"`
	Started      bool        `json:"started"`
	MaxSeats     int         `json:"maxSeats"`
}

type SeatState struct {
	Seat      int          `json:"seat"`
	Name      string       `json:"name"`
	HandCount int          `json:"handCount"`
	Hand      []cards.Card `json:"hand,omitzero"` // set only for the recipient, even when empty
	Connected bool         `json:"connected"`
	IsYou     bool         `json:"isYou"`
}

type ClaimState struct {
	Seat  int        `json:"seat"`
	Name  string     `json:"name"`
	Rank  cards.Rank `json:"rank"`
	Count int        `json:"count"`
}

func (g *Game) GetClientState(seat int, logTail int) *ClientState {
	seats := make([]SeatState, 0, len(g.Seats))
	for _, s := range g.Seats {
		state := SeatState{
			Seat:      s.Index,
			Name:      s.Name,
			HandCount: len(s.Hand),
			Connected: s.Connected,
			IsYou:     s.Index == seat,
		}
		if state.IsYou {
			state.Hand = append(make([]cards.Card, 0, len(s.Hand)), s.Hand...)
		}
		seats = append(seats, state)
	}

	var claim *ClaimState
	if g.LastClaim != nil {
		claim = &ClaimState{
			Seat:  g.LastClaim.Seat,
			Name:  g.Seats[g.LastClaim.Seat].Name,
			Rank:  g.LastClaim.Rank,
			Count: g.LastClaim.Count,
		}
	}

	var winner *int
	if g.Winner != nil {
		w := *g.Winner
		winner = &w
	}

	return &ClientState{
		RoomCode:     g.Id,
		You:          seat,
		Seats:        seats,
		PileCount:    len(g.Pile),
		DiscardCount: len(g.Discarded),
		Turn:         g.Turn,
		LastClaim:    claim,
		Log:          g.LogTail(logTail),
		Winner:       winner,
		Started:      g.Started,
		MaxSeats:     g.MaxSeats,
	}
}
