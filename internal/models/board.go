package models

// Cell is one slot on a lottery board. A nil Value is a blocked cell.
type Cell struct {
	Value  *int `json:"value"`
	Marked bool `json:"marked"`
}

// Empty reports whether the cell is blocked.
func (c Cell) Empty() bool { return c.Value == nil }

type Row []Cell

// Board is a 3x6 lottery ticket.
type Board struct {
	ID   string `json:"id"`
	Rows []Row  `json:"rows"`
}

// Clone deep-copies the board, including cell values.
func (b Board) Clone() Board {
	out := Board{ID: b.ID, Rows: make([]Row, len(b.Rows))}
	for i, row := range b.Rows {
		r := make(Row, len(row))
		for j, c := range row {
			r[j] = Cell{Marked: c.Marked}
			if c.Value != nil {
				v := *c.Value
				r[j].Value = &v
			}
		}
		out.Rows[i] = r
	}
	return out
}

// Claim is a player's assertion that Board holds a winning row.
type Claim struct {
	PlayerName string `json:"playerName"`
	Board      Board  `json:"board"`
}
