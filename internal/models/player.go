package models

// PlayerRecord is a roster entry owned by the host.
type PlayerRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ready bool   `json:"isReady"`
}

// CardPlayer is a roster entry in a Bài Cào room. Score is nil until the hand is revealed.
type CardPlayer struct {
	PlayerRecord
	Hand      []Card `json:"hand"`
	Revealed  bool   `json:"isRevealed"`
	Score     *int   `json:"score,omitempty"`
	ScoreText string `json:"scoreText,omitempty"`
}

// Clone returns a deep copy so snapshots never alias live state.
func (p CardPlayer) Clone() CardPlayer {
	out := p
	out.Hand = append([]Card(nil), p.Hand...)
	if p.Score != nil {
		s := *p.Score
		out.Score = &s
	}
	return out
}
