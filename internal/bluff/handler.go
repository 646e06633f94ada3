package bluff

import (
	"fmt"

	"bluff-server/internal/cards"
)

type MoveType string

const (
	MovePlay  MoveType = "play"
	MoveCheck MoveType = "check"
	MovePass  MoveType = "pass"
)

// Move is one validated seat action, built by the gateway from a client command.
type Move struct {
	Seat  int
	Type  MoveType
	Rank  cards.Rank
	Count int
	Cards []cards.Card
}

// ExecuteMove routes a move to its transition. A non-nil error means the game
// is unchanged. The result is set only for checks.
func (g *Game) ExecuteMove(m Move) (*CheckResult, error) {
	switch m.Type {
	case MovePlay:
		return nil, g.Play(m.Seat, m.Rank, m.Count, m.Cards)
	case MoveCheck:
		result, err := g.Check(m.Seat)
		if err != nil {
			return nil, err
		}
		return &result, nil
	case MovePass:
		return nil, g.Pass(m.Seat)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMove, m.Type)
	}
}
