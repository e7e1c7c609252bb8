package cards

import (
	"fmt"
	"strconv"

	"github.com/jason-s-yu/loto/internal/models"
)

const (
	ScoreBaTay = 10
	ScoreSap   = 11
)

// Score is a hand's rank and its display label.
type Score struct {
	Value int
	Label string
}

// value is the point value of a rank: A is 1, 10 and faces are 0.
func value(r models.Rank) int {
	switch r {
	case "A":
		return 1
	case "10", "J", "Q", "K":
		return 0
	}
	n, err := strconv.Atoi(string(r))
	if err != nil {
		return 0
	}
	return n
}

// Evaluate scores a 3-card hand. The result does not depend on card order.
// ok is false for hands of the wrong size.
func Evaluate(hand []models.Card) (s Score, ok bool) {
	if len(hand) != HandSize {
		return Score{Label: "?"}, false
	}
	a, b, c := hand[0].Rank, hand[1].Rank, hand[2].Rank
	if a == b && b == c {
		return Score{Value: ScoreSap, Label: fmt.Sprintf("Sáp %s", a)}, true
	}
	if a.IsFace() && b.IsFace() && c.IsFace() {
		return Score{Value: ScoreBaTay, Label: "Ba Tây"}, true
	}
	total := (value(a) + value(b) + value(c)) % 10
	if total == 0 {
		return Score{Value: 0, Label: "Bù"}, true
	}
	return Score{Value: total, Label: fmt.Sprintf("%d Nút", total)}, true
}
