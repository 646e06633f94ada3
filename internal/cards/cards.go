package cards

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"
)

const DeckSize = 52

type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

var suits = []Suit{Spades, Hearts, Diamonds, Clubs}

var suitSymbol = map[Suit]string{
	Spades:   "♠",
	Hearts:   "♥",
	Diamonds: "♦",
	Clubs:    "♣",
}

// Letter aliases so clients without the symbols can still address cards.
var suitLetter = map[string]Suit{
	"S": Spades,
	"H": Hearts,
	"D": Diamonds,
	"C": Clubs,
}

func (s Suit) String() string {
	return suitSymbol[s]
}

type Rank int

const (
	Two Rank = iota
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

var ranks = []Rank{Ace, King, Queen, Jack, Ten, Nine, Eight, Seven, Six, Five, Four, Three, Two}

var rankSymbol = map[Rank]string{
	Two:   "2",
	Three: "3",
	Four:  "4",
	Five:  "5",
	Six:   "6",
	Seven: "7",
	Eight: "8",
	Nine:  "9",
	Ten:   "10",
	Jack:  "J",
	Queen: "Q",
	King:  "K",
	Ace:   "A",
}

var (
	ErrInvalidRank      = errors.New("INVALID_RANK: Unknown card rank")
	ErrInvalidCard      = errors.New("INVALID_CARD: Unknown card")
	ErrInvalidSeatCount = errors.New("INVALID_SEAT_COUNT: Seat count must be positive")
)

func (r Rank) String() string {
	return rankSymbol[r]
}

func (r Rank) Valid() bool {
	_, ok := rankSymbol[r]
	return ok
}

func (r Rank) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRank, int(r))
	}
	return []byte(r.String()), nil
}

func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRank accepts the rank symbols used in card tokens ("A", "10", "7"),
// case-insensitively. "T" is accepted for ten.
func ParseRank(s string) (Rank, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "T" {
		return Ten, nil
	}
	for rank, symbol := range rankSymbol {
		if symbol == s {
			return rank, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRank, s)
}

// Card is an immutable playing card. Its text form ("K♠", "10♥") is the token
// clients use to address it.
type Card struct {
	Rank Rank
	Suit Suit
}

func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

func (c Card) MarshalText() ([]byte, error) {
	if !c.Rank.Valid() {
		return nil, fmt.Errorf("%w: rank %d", ErrInvalidCard, int(c.Rank))
	}
	if _, ok := suitSymbol[c.Suit]; !ok {
		return nil, fmt.Errorf("%w: suit %d", ErrInvalidCard, int(c.Suit))
	}
	return []byte(c.String()), nil
}

func (c *Card) UnmarshalText(text []byte) error {
	parsed, err := ParseCard(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard reads a card token: a rank symbol followed by a suit symbol or
// one of the letters S, H, D, C.
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Card{}, fmt.Errorf("%w: empty token", ErrInvalidCard)
	}

	suitPart, size := utf8.DecodeLastRuneInString(s)
	suitText := string(suitPart)
	rankText := s[:len(s)-size]

	suit, ok := parseSuit(suitText)
	if !ok {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, s)
	}
	rank, err := ParseRank(rankText)
	if err != nil {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, s)
	}

	return Card{Rank: rank, Suit: suit}, nil
}

func parseSuit(s string) (Suit, bool) {
	for suit, symbol := range suitSymbol {
		if symbol == s {
			return suit, true
		}
	}
	suit, ok := suitLetter[strings.ToUpper(s)]
	return suit, ok
}

// ParseCards parses every token, failing on the first bad one.
func ParseCards(tokens []string) ([]Card, error) {
	out := make([]Card, 0, len(tokens))
	for _, token := range tokens {
		card, err := ParseCard(token)
		if err != nil {
			return nil, err
		}
		out = append(out, card)
	}
	return out, nil
}

type Deck struct {
	Cards []Card `json:"cards"`
}

// NewDeck returns the 52 cards in a fixed order.
func NewDeck() *Deck {
	deck := make([]Card, 0, DeckSize)
	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	return &Deck{deck}
}

func (deck Deck) Count() int {
	return len(deck.Cards)
}

func (d *Deck) Shuffle() {
	rand.Shuffle(d.Count(), func(i, j int) {
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	})
}

// Deal shuffles a fresh deck and splits it round-robin into seatCount hands.
// When 52 does not divide evenly the first 52 mod seatCount hands hold one
// extra card.
func Deal(seatCount int) ([][]Card, error) {
	deck := NewDeck()
	deck.Shuffle()
	return DealFrom(deck, seatCount)
}

// DealFrom splits the deck in its current order without shuffling.
func DealFrom(deck *Deck, seatCount int) ([][]Card, error) {
	if seatCount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSeatCount, seatCount)
	}

	hands := make([][]Card, seatCount)
	for i := range hands {
		hands[i] = make([]Card, 0, deck.Count()/seatCount+1)
	}
	for i, card := range deck.Cards {
		hands[i%seatCount] = append(hands[i%seatCount], card)
	}
	return hands, nil
}
