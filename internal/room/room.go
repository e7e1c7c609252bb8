// Package room holds the game-independent state of a room: its lifecycle
// status, the roster and the chat log.
package room

import (
	"errors"
	"fmt"

	"github.com/jason-s-yu/loto/internal/models"
)

var (
	ErrInvalidTransition = errors.New("invalid room transition")
	ErrRosterFull        = errors.New("roster full")
)

// Room is one participant's view of a room. The host's Room is authoritative.
// It is not safe for concurrent use; reconcilers guard it with their own lock.
type Room struct {
	status models.RoomStatus
	Roster *Roster
	Chat   *ChatLog
}

// New returns a room in Lobby with an empty roster capped at rosterCap
// (0 means unbounded).
func New(rosterCap int) *Room {
	return &Room{
		status: models.StatusLobby,
		Roster: NewRoster(rosterCap),
		Chat:   NewChatLog(ChatCap),
	}
}

func (r *Room) Status() models.RoomStatus { return r.status }

func (r *Room) Playing() bool { return r.status == models.StatusPlaying }

// Start moves Lobby to Playing. Starting an already playing room is allowed
// and leaves it Playing.
func (r *Room) Start() error {
	switch r.status {
	case models.StatusLobby, models.StatusPlaying:
		r.status = models.StatusPlaying
		return nil
	}
	return fmt.Errorf("start from %s: %w", r.status, ErrInvalidTransition)
}

// Reset begins a new round. The room must already be Playing and stays Playing.
func (r *Room) Reset() error {
	if r.status != models.StatusPlaying {
		return fmt.Errorf("reset from %s: %w", r.status, ErrInvalidTransition)
	}
	return nil
}

// Restore adopts a status received from the host.
func (r *Room) Restore(status models.RoomStatus) error {
	if !status.Valid() {
		return fmt.Errorf("restore %q: %w", status, ErrInvalidTransition)
	}
	r.status = status
	return nil
}
