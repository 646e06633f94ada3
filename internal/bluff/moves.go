package bluff

import (
	"fmt"
	"slices"

	"bluff-server/internal/cards"
)

// CheckResult describes how a check was resolved.
type CheckResult struct {
	Checker  int  `json:"checker"`
	Claimant int  `json:"claimant"`
	Lied     bool `json:"lied"`
	Taker    int  `json:"taker"`
	PileSize int  `json:"pileSize"`
}

// canAct covers the rules shared by every move: the game is live, there is
// someone to play against, and the seat holds the turn.
func (g *Game) canAct(seat int) error {
	if g.IsOver() {
		return ErrGameAlreadyOver
	}
	if len(g.Seats) < MinSeats {
		return ErrWaitingForPlayers
	}
	if seat != g.Turn {
		return fmt.Errorf("%w (seat %d holds the turn)", ErrNotYourTurn, g.Turn)
	}
	return nil
}

/*
 * Play
 */

func (g *Game) Play(seat int, rank cards.Rank, count int, selected []cards.Card) error {
	if err := g.canAct(seat); err != nil {
		return err
	}
	if !rank.Valid() {
		return fmt.Errorf("%w: unknown rank", ErrInvalidSelection)
	}
	if len(selected) == 0 {
		return fmt.Errorf("%w: select at least one card", ErrInvalidSelection)
	}
	if len(selected) != count {
		return fmt.Errorf("%w: claimed %d cards but selected %d", ErrInvalidSelection, count, len(selected))
	}

	player := g.Seats[seat]
	picked := make(map[cards.Card]bool, len(selected))
	for _, card := range selected {
		if picked[card] {
			return fmt.Errorf("%w: %s selected twice", ErrInvalidSelection, card)
		}
		if !slices.Contains(player.Hand, card) {
			return fmt.Errorf("%w: %s is not in your hand", ErrInvalidSelection, card)
		}
		picked[card] = true
	}

	// Validation is complete; nothing below can fail.
	player.Hand = slices.DeleteFunc(player.Hand, func(c cards.Card) bool {
		return picked[c]
	})
	played := slices.Clone(selected)
	g.Pile = append(g.Pile, played...)
	g.LastClaim = &Claim{
		Seat:  seat,
		Rank:  rank,
		Count: count,
		Cards: played,
	}
	g.PassCount = 0
	g.Log = append(g.Log, fmt.Sprintf("%s claims %dx %s", player.Name, count, rank))

	if len(player.Hand) == 0 {
		pending := seat
		g.PendingWinner = &pending
	}

	g.advanceTurn()
	g.settle()
	return nil
}

/*
 * Check
 */

func (g *Game) Check(seat int) (CheckResult, error) {
	if err := g.canAct(seat); err != nil {
		return CheckResult{}, err
	}
	if g.LastClaim == nil {
		return CheckResult{}, ErrNoClaim
	}
	if g.LastClaim.Seat == seat {
		return CheckResult{}, ErrSelfCheckForbidden
	}

	claim := g.LastClaim
	checker := g.Seats[seat]
	claimant := g.Seats[claim.Seat]

	result := CheckResult{
		Checker:  seat,
		Claimant: claim.Seat,
		Lied:     claim.Lied(),
		PileSize: len(g.Pile),
	}

	if result.Lied {
		claimant.Hand = append(claimant.Hand, g.Pile...)
		result.Taker = claim.Seat
		g.Turn = seat
		g.Log = append(g.Log, fmt.Sprintf(
			"%s checked %s. %s LIED and takes the pile (%d cards).",
			checker.Name, claimant.Name, claimant.Name, result.PileSize))
	} else {
		checker.Hand = append(checker.Hand, g.Pile...)
		result.Taker = seat
		g.Turn = claim.Seat
		g.Log = append(g.Log, fmt.Sprintf(
			"%s checked %s. %s was HONEST. %s takes the pile (%d cards).",
			checker.Name, claimant.Name, claimant.Name, checker.Name, result.PileSize))
	}

	g.Pile = make([]cards.Card, 0)
	g.LastClaim = nil
	g.PassCount = 0

	g.settle()
	return result, nil
}

/*
 * Pass
 */

func (g *Game) Pass(seat int) error {
	if err := g.canAct(seat); err != nil {
		return err
	}

	g.Log = append(g.Log, fmt.Sprintf("%s passed", g.Seats[seat].Name))
	g.PassCount++
	g.advanceTurn()

	// A full lap of passes over a claim: nobody called it, the pile is
	// discarded and awarded to no one.
	if g.LastClaim != nil && g.PassCount >= len(g.Seats) {
		g.Log = append(g.Log, fmt.Sprintf("Everyone passed. %d cards are discarded.", len(g.Pile)))
		g.Discarded = append(g.Discarded, g.Pile...)
		g.Pile = make([]cards.Card, 0)
		g.LastClaim = nil
		g.PassCount = 0
	}

	g.settle()
	return nil
}

func (g *Game) advanceTurn() {
	g.Turn = (g.Turn + 1) % len(g.Seats)
}

// settle runs after every accepted transition.
func (g *Game) settle() {
	g.Started = true
	g.Actions++
	g.confirmWinner()
}
