package lottery

import (
	"errors"
	"math/rand"
)

var (
	ErrExhausted      = errors.New("all numbers have been called")
	ErrNoPendingClaim = errors.New("no pending claim")
	ErrNotPlaying     = errors.New("round not in progress")
	ErrNoWinningRow   = errors.New("board has no completed row")
	ErrNoSuchCell     = errors.New("no such cell")
	ErrClaimPending   = errors.New("claim awaiting the host's check")
)

// Caller draws numbers 1..TotalNumbers without repetition within a round.
type Caller struct {
	history []int // most recent first
	called  map[int]bool
}

func NewCaller() *Caller {
	return &Caller{called: make(map[int]bool)}
}

// Draw picks uniformly among the numbers not yet called.
func (c *Caller) Draw(rng *rand.Rand) (int, error) {
	remaining := make([]int, 0, TotalNumbers-len(c.history))
	for n := 1; n <= TotalNumbers; n++ {
		if !c.called[n] {
			remaining = append(remaining, n)
		}
	}
	if len(remaining) == 0 {
		return 0, ErrExhausted
	}
	n := remaining[rng.Intn(len(remaining))]
	c.record(n)
	return n, nil
}

// Record adds n received from the host. Repeats are ignored and reported false.
func (c *Caller) Record(n int) bool {
	if n < 1 || n > TotalNumbers || c.called[n] {
		return false
	}
	c.record(n)
	return true
}

func (c *Caller) record(n int) {
	c.called[n] = true
	c.history = append([]int{n}, c.history...)
}

// Has reports whether n was called this round.
func (c *Caller) Has(n int) bool { return c.called[n] }

// Current is the most recent number, if any.
func (c *Caller) Current() (int, bool) {
	if len(c.history) == 0 {
		return 0, false
	}
	return c.history[0], true
}

// History returns the called numbers, most recent first.
func (c *Caller) History() []int { return append([]int{}, c.history...) }

func (c *Caller) Len() int { return len(c.history) }

func (c *Caller) Reset() {
	c.history = nil
	c.called = make(map[int]bool)
}

// Restore replaces the history with a host snapshot (most recent first).
func (c *Caller) Restore(history []int) {
	c.Reset()
	for i := len(history) - 1; i >= 0; i-- {
		c.Record(history[i])
	}
}
