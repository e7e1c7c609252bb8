package cards

// Standing is one revealed hand as the leaderboard sees it.
type Standing struct {
	ID    string
	Score int
	Seq   int // reveal order, lower is earlier
}

// Leader picks the leader among revealed hands. A tie at the top goes to
// justRevealed when it is part of the tie, otherwise to the earliest reveal.
func Leader(revealed []Standing, justRevealed string) (string, bool) {
	if len(revealed) == 0 {
		return "", false
	}
	best := revealed[0]
	for _, s := range revealed[1:] {
		if s.Score > best.Score || (s.Score == best.Score && s.Seq < best.Seq) {
			best = s
		}
	}
	if justRevealed != "" && justRevealed != best.ID {
		for _, s := range revealed {
			if s.ID == justRevealed && s.Score == best.Score {
				return s.ID, true
			}
		}
	}
	return best.ID, true
}
