// internal/models/lobby.go
package models

// RoomStatus is the room phase. The host's value is authoritative.
type RoomStatus string

const (
	StatusLobby   RoomStatus = "LOBBY"
	StatusPlaying RoomStatus = "PLAYING"
	// StatusEnded is part of the wire vocabulary but no transition enters it.
	StatusEnded RoomStatus = "ENDED"
)

// Valid reports whether s is one of the known statuses.
func (s RoomStatus) Valid() bool {
	switch s {
	case StatusLobby, StatusPlaying, StatusEnded:
		return true
	}
	return false
}

// Role is the part a participant plays in a session.
type Role string

const (
	RoleNone   Role = "NONE"
	RoleHost   Role = "HOST"
	RolePlayer Role = "PLAYER"
)
