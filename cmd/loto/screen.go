package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/jason-s-yu/loto/internal/models"
)

// screen serialises terminal output from the console and from reconciler
// callbacks, which run on session goroutines.
type screen struct {
	mu   sync.Mutex
	out  io.Writer
	seen map[string]bool
	last map[string]string
}

func newScreen(out io.Writer) *screen {
	return &screen{out: out, seen: make(map[string]bool), last: make(map[string]string)}
}

func (s *screen) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// chat prints the messages in msgs that were not printed before.
func (s *screen) chat(msgs []models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		next[m.ID] = true
		if s.seen[m.ID] {
			continue
		}
		if m.IsSystem {
			fmt.Fprintf(s.out, "* %s\n", m.Text)
		} else {
			fmt.Fprintf(s.out, "<%s> %s\n", m.Sender, m.Text)
		}
	}
	s.seen = next
}

// changed prints line when it differs from the last line printed under key.
func (s *screen) changed(key, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last[key] == line {
		return
	}
	s.last[key] = line
	if line != "" {
		fmt.Fprintln(s.out, line)
	}
}

func formatBoard(i int, b models.Board) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Vé %d\n", i+1)
	for _, row := range b.Rows {
		for _, c := range row {
			switch {
			case c.Empty():
				sb.WriteString("  ·  ")
			case c.Marked:
				fmt.Fprintf(&sb, " [%2d]", *c.Value)
			default:
				fmt.Fprintf(&sb, "  %2d ", *c.Value)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatBoards(boards []models.Board) string {
	var sb strings.Builder
	for i, b := range boards {
		sb.WriteString(formatBoard(i, b))
	}
	return sb.String()
}

func formatCalled(called []int) string {
	if len(called) == 0 {
		return "chưa gọi số nào"
	}
	parts := make([]string, len(called))
	for i, n := range called {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}

var suitSymbols = map[models.Suit]string{
	models.Hearts:   "♥",
	models.Diamonds: "♦",
	models.Clubs:    "♣",
	models.Spades:   "♠",
}

func formatHand(hand []models.Card) string {
	parts := make([]string, len(hand))
	for i, c := range hand {
		if c.Hidden {
			parts[i] = "[??]"
			continue
		}
		parts[i] = "[" + string(c.Rank) + suitSymbols[c.Suit] + "]"
	}
	return strings.Join(parts, " ")
}

func formatTable(players []models.CardPlayer, leader string) string {
	var sb strings.Builder
	for _, p := range players {
		mark := " "
		if p.ID == leader {
			mark = "👑"
		}
		away := ""
		if !p.Ready {
			away = " (vắng)"
		}
		score := ""
		if p.Revealed {
			score = " " + p.ScoreText
		}
		fmt.Fprintf(&sb, "%s %-16s %s%s%s\n", mark, p.Name, formatHand(p.Hand), score, away)
	}
	return sb.String()
}
