// Package cards implements Bài Cào: a 3-card hand per player, scored by
// the sum of card values mod 10 with two special categories on top.
package cards

import (
	"math/rand"

	"github.com/jason-s-yu/loto/internal/models"
)

const HandSize = 3

// NewDeck returns the 52 cards face down in suit-major order.
func NewDeck() []models.Card {
	deck := make([]models.Card, 0, len(models.Suits)*len(models.Ranks))
	for _, s := range models.Suits {
		for _, r := range models.Ranks {
			deck = append(deck, models.Card{Suit: s, Rank: r, Hidden: true})
		}
	}
	return deck
}

// Shuffle permutes deck in place (Fisher–Yates).
func Shuffle(deck []models.Card, rng *rand.Rand) {
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// Dealer draws from a shuffled deck, opening a fresh shuffled deck whenever
// the current one runs out.
type Dealer struct {
	rng  *rand.Rand
	deck []models.Card
}

func NewDealer(rng *rand.Rand) *Dealer {
	d := &Dealer{rng: rng}
	d.refill()
	return d
}

func (d *Dealer) refill() {
	d.deck = NewDeck()
	Shuffle(d.deck, d.rng)
}

// Remaining is the number of cards left before the next refill.
func (d *Dealer) Remaining() int { return len(d.deck) }

// Draw takes the top card.
func (d *Dealer) Draw() models.Card {
	if len(d.deck) == 0 {
		d.refill()
	}
	c := d.deck[len(d.deck)-1]
	d.deck = d.deck[:len(d.deck)-1]
	return c
}

// Hand draws a full face-down hand.
func (d *Dealer) Hand() []models.Card {
	hand := make([]models.Card, HandSize)
	for i := range hand {
		hand[i] = d.Draw()
		hand[i].Hidden = true
	}
	return hand
}
