// internal/protocol/message.go
package protocol

import (
	"github.com/jason-s-yu/loto/internal/models"
)

// Tag identifies a message on the wire.
type Tag string

// --- Common ---
const (
	TagJoin      Tag = "JOIN"
	TagWelcome   Tag = "WELCOME"
	TagStartGame Tag = "START_GAME"
	TagChat      Tag = "CHAT"
	TagReset     Tag = "RESET"
	TagPing      Tag = "PING"
)

// --- Lottery ---
const (
	TagNumberDrawn   Tag = "NUMBER_DRAWN"
	TagClaimWin      Tag = "CLAIM_WIN"
	TagClaimRejected Tag = "CLAIM_REJECTED"
	TagWin           Tag = "WIN"
)

// --- Card game ---
const (
	TagCardWelcome   Tag = "CARD_WELCOME"
	TagCardDeal      Tag = "CARD_DEAL"
	TagCardReveal    Tag = "CARD_REVEAL"
	TagCardRevealAll Tag = "CARD_REVEAL_ALL"
	TagCardResult    Tag = "CARD_RESULT"
)

// Message is the single flat payload exchanged between participants.
// Only the fields relevant to Type are populated.
type Message struct {
	Type Tag `json:"type"`

	// JOIN
	Name string `json:"name,omitempty"`

	// WELCOME, CARD_WELCOME
	GameState     models.RoomStatus   `json:"gameState,omitempty"`
	CalledNumbers []int               `json:"calledNumbers,omitempty"`
	Players       []models.CardPlayer `json:"players,omitempty"`

	// NUMBER_DRAWN
	Number int `json:"number,omitempty"`

	// CHAT
	Chat *models.ChatMessage `json:"message,omitempty"`

	// CLAIM_WIN
	Claim *models.Claim `json:"claim,omitempty"`

	// WIN
	WinnerName string `json:"winnerName,omitempty"`

	// CARD_DEAL: recipient identity -> hand
	Hands map[string][]models.Card `json:"hands,omitempty"`

	// CARD_REVEAL
	PeerID string        `json:"peerId,omitempty"`
	Hand   []models.Card `json:"hand,omitempty"`

	// CARD_RESULT
	WinnerID string `json:"winnerId,omitempty"`
}

func Join(name string) Message { return Message{Type: TagJoin, Name: name} }

// Welcome is the lottery snapshot sent to a joining player.
// CalledNumbers is most-recent first.
func Welcome(status models.RoomStatus, called []int) Message {
	return Message{Type: TagWelcome, GameState: status, CalledNumbers: append([]int{}, called...)}
}

func StartGame() Message { return Message{Type: TagStartGame} }

func Chat(msg models.ChatMessage) Message { return Message{Type: TagChat, Chat: &msg} }

func Reset() Message { return Message{Type: TagReset} }

func Ping() Message { return Message{Type: TagPing} }

func NumberDrawn(n int) Message { return Message{Type: TagNumberDrawn, Number: n} }

func ClaimWin(claim models.Claim) Message { return Message{Type: TagClaimWin, Claim: &claim} }

func ClaimRejected() Message { return Message{Type: TagClaimRejected} }

func Win(winner string) Message { return Message{Type: TagWin, WinnerName: winner} }

// CardWelcome carries the full roster snapshot. Callers are responsible for
// masking hands that are not yet revealed.
func CardWelcome(players []models.CardPlayer, status models.RoomStatus) Message {
	return Message{Type: TagCardWelcome, Players: players, GameState: status}
}

// CardDeal carries one recipient's private hand.
func CardDeal(recipient string, hand []models.Card) Message {
	return Message{Type: TagCardDeal, Hands: map[string][]models.Card{recipient: hand}}
}

func CardReveal(peerID string, hand []models.Card) Message {
	return Message{Type: TagCardReveal, PeerID: peerID, Hand: hand}
}

func CardRevealAll() Message { return Message{Type: TagCardRevealAll} }

func CardResult(winnerID string) Message { return Message{Type: TagCardResult, WinnerID: winnerID} }
