package models

type Suit string

const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"
)

// Suits lists the four suits in deck order.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

type Rank string

// Ranks lists the thirteen ranks in deck order.
var Ranks = []Rank{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

// IsFace reports whether the rank is J, Q or K.
func (r Rank) IsFace() bool {
	return r == "J" || r == "Q" || r == "K"
}

// Card is a playing card. Hidden cards in a snapshot carry no suit or rank.
type Card struct {
	Suit   Suit `json:"suit,omitempty"`
	Rank   Rank `json:"rank,omitempty"`
	Hidden bool `json:"isHidden"`
}

// Masked returns a face-down placeholder that leaks nothing about the card.
func (c Card) Masked() Card {
	if !c.Hidden {
		return c
	}
	return Card{Hidden: true}
}
