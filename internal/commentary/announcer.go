// Package commentary produces the MC call for each drawn number.
package commentary

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Generator produces a free-form call for n. An empty result means "no
// opinion" and triggers the fallback bank.
type Generator interface {
	Generate(ctx context.Context, n int) (string, error)
}

// Announcement is what the host shows and speaks after a draw.
type Announcement struct {
	Number int
	Phrase string
	Spoken string
	// Generated is true when Phrase came from the Generator.
	Generated bool
}

// Announcer combines an optional Generator with the fallback bank.
type Announcer struct {
	gen     Generator
	phrases *Phrases
	timeout time.Duration
	logger  *logrus.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAnnouncer builds an announcer. gen may be nil.
func NewAnnouncer(gen Generator, timeout time.Duration, logger *logrus.Logger) *Announcer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Announcer{
		gen:     gen,
		phrases: DefaultPhrases(),
		timeout: timeout,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand swaps the random source, for deterministic phrase picks.
func (a *Announcer) WithRand(rng *rand.Rand) *Announcer {
	a.mu.Lock()
	a.rng = rng
	a.mu.Unlock()
	return a
}

// Announce never fails: generator errors and empty replies fall back to the bank.
func (a *Announcer) Announce(ctx context.Context, n int) Announcement {
	spokenNumber := ReadVietnamese(n)

	if a.gen != nil {
		genCtx := ctx
		if a.timeout > 0 {
			var cancel context.CancelFunc
			genCtx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}
		phrase, err := a.gen.Generate(genCtx, n)
		switch {
		case err != nil:
			a.logger.Warnf("commentary: generator failed for %d, using fallback: %v", n, err)
		case phrase != "":
			return Announcement{
				Number:    n,
				Phrase:    phrase,
				Spoken:    fmt.Sprintf("%s Số %s.", phrase, spokenNumber),
				Generated: true,
			}
		}
	}

	a.mu.Lock()
	phrase := a.phrases.Pick(n, a.rng)
	a.mu.Unlock()
	return Announcement{
		Number: n,
		Phrase: phrase,
		Spoken: fmt.Sprintf("%s Con số %s.", phrase, spokenNumber),
	}
}
