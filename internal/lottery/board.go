// Package lottery implements the Lô tô round: ticket generation, the number
// caller, and the host and player reconcilers.
package lottery

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jason-s-yu/loto/internal/models"
)

const (
	TotalNumbers    = 60
	RowsPerBoard    = 3
	ColsPerBoard    = 6
	NumsPerRow      = 4
	BoardsPerPlayer = 5

	maxRerolls = 100
)

// colRange returns the inclusive number range printed in column col.
// The last column also carries 60.
func colRange(col int) (lo, hi int) {
	switch col {
	case 0:
		return 1, 9
	case ColsPerBoard - 1:
		return 50, TotalNumbers
	default:
		return col * 10, col*10 + 9
	}
}

// GenerateBoards deals a fresh set of tickets for one participant.
func GenerateBoards(rng *rand.Rand) []models.Board {
	stamp := time.Now().UnixMilli()
	boards := make([]models.Board, BoardsPerPlayer)
	for i := range boards {
		boards[i] = generateBoard(fmt.Sprintf("board-%d-%d", stamp, i), rng)
	}
	return boards
}

func generateBoard(id string, rng *rand.Rand) models.Board {
	used := make(map[int]bool)
	b := models.Board{ID: id, Rows: make([]models.Row, RowsPerBoard)}
	for r := range b.Rows {
		row := make(models.Row, ColsPerBoard)
		for _, col := range rng.Perm(ColsPerBoard)[:NumsPerRow] {
			lo, hi := colRange(col)
			n := lo + rng.Intn(hi-lo+1)
			for attempts := 0; used[n] && attempts < maxRerolls; attempts++ {
				n = lo + rng.Intn(hi-lo+1)
			}
			used[n] = true
			v := n
			row[col] = models.Cell{Value: &v}
		}
		b.Rows[r] = row
	}
	return b
}

// CheckRowWin reports whether every numbered cell in row is marked.
// A row with no numbers never wins.
func CheckRowWin(row models.Row) bool {
	numbers := 0
	for _, c := range row {
		if c.Empty() {
			continue
		}
		numbers++
		if !c.Marked {
			return false
		}
	}
	return numbers > 0
}

// CheckBoardWin returns the index of the first winning row, or -1.
func CheckBoardWin(b models.Board) int {
	for i, row := range b.Rows {
		if CheckRowWin(row) {
			return i
		}
	}
	return -1
}

// VerifyClaim is the host-side check: a row counts only if it wins and every
// number in it has actually been called. Returns the row index or -1.
func VerifyClaim(b models.Board, called func(int) bool) int {
	for i, row := range b.Rows {
		if !CheckRowWin(row) {
			continue
		}
		ok := true
		for _, c := range row {
			if !c.Empty() && !called(*c.Value) {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

// toggleMark flips the mark on a numbered cell.
func toggleMark(boards []models.Board, b, r, c int) error {
	if b < 0 || b >= len(boards) {
		return fmt.Errorf("board %d: %w", b, ErrNoSuchCell)
	}
	rows := boards[b].Rows
	if r < 0 || r >= len(rows) || c < 0 || c >= len(rows[r]) {
		return fmt.Errorf("cell %d/%d/%d: %w", b, r, c, ErrNoSuchCell)
	}
	cell := &rows[r][c]
	if cell.Empty() {
		return fmt.Errorf("cell %d/%d/%d is blank: %w", b, r, c, ErrNoSuchCell)
	}
	cell.Marked = !cell.Marked
	return nil
}

func clearMarks(boards []models.Board) {
	for _, b := range boards {
		for _, row := range b.Rows {
			for j := range row {
				row[j].Marked = false
			}
		}
	}
}

func cloneBoards(boards []models.Board) []models.Board {
	out := make([]models.Board, len(boards))
	for i, b := range boards {
		out[i] = b.Clone()
	}
	return out
}
