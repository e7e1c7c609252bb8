package room

import (
	"strings"
	"unicode"

	"github.com/jason-s-yu/loto/internal/models"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	maxNameRunes = 24
	DefaultName  = "Người chơi"
)

// Roster is the set of players keyed by identity, kept in join order.
type Roster struct {
	Cap   int
	byID  map[string]models.PlayerRecord
	order []string
}

func NewRoster(capacity int) *Roster {
	return &Roster{Cap: capacity, byID: make(map[string]models.PlayerRecord)}
}

// Add inserts rec. A second Add for the same identity is a no-op that
// reports false. A full roster rejects new identities with ErrRosterFull.
func (r *Roster) Add(rec models.PlayerRecord) (bool, error) {
	if _, ok := r.byID[rec.ID]; ok {
		return false, nil
	}
	if r.Cap > 0 && len(r.order) >= r.Cap {
		return false, ErrRosterFull
	}
	rec.Name = NormalizeName(rec.Name)
	r.byID[rec.ID] = rec
	r.order = append(r.order, rec.ID)
	return true, nil
}

func (r *Roster) Get(id string) (models.PlayerRecord, bool) {
	rec, ok := r.byID[id]
	return rec, ok
}

// SetReady updates the ready flag and reports whether the player exists.
func (r *Roster) SetReady(id string, ready bool) bool {
	rec, ok := r.byID[id]
	if !ok {
		return false
	}
	rec.Ready = ready
	r.byID[id] = rec
	return true
}

func (r *Roster) Len() int { return len(r.order) }

// List returns the roster in join order.
func (r *Roster) List() []models.PlayerRecord {
	out := make([]models.PlayerRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Replace swaps the whole roster for a host snapshot.
func (r *Roster) Replace(recs []models.PlayerRecord) {
	r.byID = make(map[string]models.PlayerRecord, len(recs))
	r.order = r.order[:0]
	for _, rec := range recs {
		if _, dup := r.byID[rec.ID]; dup {
			continue
		}
		r.byID[rec.ID] = rec
		r.order = append(r.order, rec.ID)
	}
}

// NormalizeName composes, width-folds and trims a display name, collapsing
// inner whitespace and bounding its length.
func NormalizeName(name string) string {
	name = width.Fold.String(norm.NFC.String(name))
	name = strings.Join(strings.FieldsFunc(name, unicode.IsSpace), " ")
	if runes := []rune(name); len(runes) > maxNameRunes {
		name = strings.TrimSpace(string(runes[:maxNameRunes]))
	}
	if name == "" {
		return DefaultName
	}
	return name
}
