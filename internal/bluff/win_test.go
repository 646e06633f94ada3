package bluff_test

import (
	"bluff-server/internal/bluff"
	"bluff-server/internal/cards"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyHandTable seats two players where A holds only the given cards.
func emptyHandTable(t *testing.T, aHand []cards.Card) *bluff.Game {
	t.Helper()
	dealer := func(seatCount int) ([][]cards.Card, error) {
		hands, err := dealWith(aHand)(seatCount)
		if err != nil || seatCount < 2 {
			return hands, err
		}
		// Move everything past A's fixed cards over to the other seats.
		extra := hands[0][len(aHand):]
		hands[0] = hands[0][:len(aHand)]
		for i, c := range extra {
			target := 1 + i%(seatCount-1)
			hands[target] = append(hands[target], c)
		}
		return hands, nil
	}
	return newTable(t, dealer, "A", "B")
}

func TestWinIsDeferredUntilTurnReturns(t *testing.T) {
	g := emptyHandTable(t, hand("8♠"))
	require.Len(t, g.Seats[0].Hand, 1)

	require.NoError(t, g.Play(0, cards.Eight, 1, hand("8♠")))

	assert.Nil(t, g.Winner, "no win at the moment the hand empties")
	require.NotNil(t, g.PendingWinner)
	assert.Equal(t, 0, *g.PendingWinner)

	require.NoError(t, g.Pass(1))

	require.NotNil(t, g.Winner)
	assert.Equal(t, 0, *g.Winner)
	assert.Nil(t, g.PendingWinner)
	assert.Contains(t, g.Log[len(g.Log)-1], "A has won the game!")
	assert.True(t, g.IsOver())
}

func TestHonestLastPlayWinsAfterCheck(t *testing.T) {
	g := emptyHandTable(t, hand("8♠"))

	require.NoError(t, g.Play(0, cards.Eight, 1, hand("8♠")))
	_, err := g.Check(1)
	require.NoError(t, err)

	require.NotNil(t, g.Winner)
	assert.Equal(t, 0, *g.Winner)
}

func TestCaughtBluffCancelsPendingWin(t *testing.T) {
	g := emptyHandTable(t, hand("8♠"))

	require.NoError(t, g.Play(0, cards.Ace, 1, hand("8♠")))
	result, err := g.Check(1)
	require.NoError(t, err)
	require.True(t, result.Lied)

	assert.Nil(t, g.Winner)
	assert.Len(t, g.Seats[0].Hand, 1)
	// B holds the turn, the pending seat has not been reached yet.
	assert.Equal(t, 1, g.Turn)

	require.NoError(t, g.Pass(1))
	assert.Nil(t, g.Winner, "refilled hand must not win")
	assert.Nil(t, g.PendingWinner)
	assert.Equal(t, 0, g.Turn)
}

func TestGameOverRejectsEverything(t *testing.T) {
	g := emptyHandTable(t, hand("8♠"))
	require.NoError(t, g.Play(0, cards.Eight, 1, hand("8♠")))
	require.NoError(t, g.Pass(1))
	require.True(t, g.IsOver())

	before := snapshot(g)
	assert.ErrorIs(t, g.Pass(0), bluff.ErrGameAlreadyOver)
	assert.ErrorIs(t, g.Play(0, cards.Two, 1, hand("2♠")), bluff.ErrGameAlreadyOver)
	_, err := g.Check(0)
	assert.ErrorIs(t, err, bluff.ErrGameAlreadyOver)
	assert.Equal(t, before, snapshot(g))
}

// Random legal and illegal moves must never break card conservation or the
// turn pointer, and a winner, once set, never changes.
func TestRandomPlayKeepsInvariants(t *testing.T) {
	for round := 0; round < 50; round++ {
		rng := rand.New(rand.NewPCG(uint64(round), 7))
		seats := 2 + rng.IntN(5)

		names := []string{"A", "B", "C", "D", "E", "F", "G"}[:seats]
		g := newTable(t, nil, names...)

		var winner *int
		for step := 0; step < 400; step++ {
			seat := g.Turn
			if rng.IntN(10) == 0 {
				seat = rng.IntN(seats)
			}

			switch rng.IntN(3) {
			case 0:
				h := g.Seats[seat].Hand
				if len(h) == 0 {
					_ = g.Pass(seat)
					break
				}
				n := 1 + rng.IntN(min(4, len(h)))
				picked := append([]cards.Card(nil), h[:n]...)
				_ = g.Play(seat, cards.Rank(rng.IntN(13)), n, picked)
			case 1:
				_, _ = g.Check(seat)
			default:
				_ = g.Pass(seat)
			}

			require.NoError(t, g.CheckInvariants(), "round %d step %d", round, step)
			if winner != nil {
				require.NotNil(t, g.Winner)
				require.Equal(t, *winner, *g.Winner)
			}
			if g.Winner != nil {
				w := *g.Winner
				winner = &w
				assert.Empty(t, g.Seats[w].Hand)
			}
		}
	}
}
