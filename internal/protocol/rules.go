package protocol

import "github.com/jason-s-yu/loto/internal/models"

type senders struct {
	host   bool
	player bool
}

// legality is the sender column of the message table.
var legality = map[Tag]senders{
	TagJoin:          {player: true},
	TagWelcome:       {host: true},
	TagStartGame:     {host: true},
	TagChat:          {host: true, player: true},
	TagReset:         {host: true},
	TagPing:          {host: true, player: true},
	TagNumberDrawn:   {host: true},
	TagClaimWin:      {player: true},
	TagClaimRejected: {host: true},
	TagWin:           {host: true},
	TagCardWelcome:   {host: true},
	TagCardDeal:      {host: true},
	TagCardReveal:    {host: true, player: true},
	TagCardRevealAll: {host: true},
	TagCardResult:    {host: true},
}

// Known reports whether tag is part of the protocol.
func Known(tag Tag) bool {
	_, ok := legality[tag]
	return ok
}

// Allowed reports whether a participant in role may originate tag.
func Allowed(tag Tag, role models.Role) bool {
	s, ok := legality[tag]
	if !ok {
		return false
	}
	switch role {
	case models.RoleHost:
		return s.host
	case models.RolePlayer:
		return s.player
	}
	return false
}

// HostRelays reports whether the host re-broadcasts a player's message to the
// room. Claims and reveals are recomputed by the host instead.
func HostRelays(tag Tag) bool {
	return tag == TagChat
}
