package bluff

import "fmt"

// confirmWinner grants a pending win once the turn comes back around to the
// seat that emptied its hand. If the hand was refilled in the meantime the
// pending win is dropped.
func (g *Game) confirmWinner() {
	if g.Winner != nil || g.PendingWinner == nil {
		return
	}
	if g.Turn != *g.PendingWinner {
		return
	}

	seat := g.Seats[g.Turn]
	if len(seat.Hand) == 0 {
		winner := g.Turn
		g.Winner = &winner
		g.Log = append(g.Log, fmt.Sprintf("%s has won the game!", seat.Name))
	}
	g.PendingWinner = nil
}
