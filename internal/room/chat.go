package room

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/loto/internal/models"
	"golang.org/x/text/unicode/norm"
)

const (
	ChatCap      = 50
	maxChatRunes = 280
	SystemSender = "Hệ thống"
	HostSender   = "Host (Cái)"
)

// ChatLog keeps the most recent messages in receipt order.
type ChatLog struct {
	cap  int
	msgs []models.ChatMessage
}

func NewChatLog(capacity int) *ChatLog {
	if capacity <= 0 {
		capacity = ChatCap
	}
	return &ChatLog{cap: capacity}
}

// Append adds msg, evicting the oldest entry once the log is full.
func (l *ChatLog) Append(msg models.ChatMessage) {
	l.msgs = append(l.msgs, msg)
	if over := len(l.msgs) - l.cap; over > 0 {
		l.msgs = append(l.msgs[:0:0], l.msgs[over:]...)
	}
}

// Has reports whether a message with id is still in the log.
func (l *ChatLog) Has(id string) bool {
	for _, m := range l.msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (l *ChatLog) Clear() { l.msgs = nil }

func (l *ChatLog) Len() int { return len(l.msgs) }

// Messages returns a copy of the log, oldest first.
func (l *ChatLog) Messages() []models.ChatMessage {
	return append([]models.ChatMessage(nil), l.msgs...)
}

// NewChat builds a message stamped now.
func NewChat(sender, text string, system bool) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      NormalizeText(text),
		IsSystem:  system,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Relayed rebuilds a player's message for rebroadcast. Players cannot post
// system messages and blank text is dropped.
func Relayed(in models.ChatMessage, fallbackSender string) (models.ChatMessage, bool) {
	sender := in.Sender
	if sender == "" {
		sender = fallbackSender
	}
	out := NewChat(sender, in.Text, false)
	if out.Text == "" {
		return out, false
	}
	if in.ID != "" {
		out.ID = in.ID
	}
	if in.Timestamp != 0 {
		out.Timestamp = in.Timestamp
	}
	return out, true
}

// System builds a system announcement.
func System(text string) models.ChatMessage { return NewChat(SystemSender, text, true) }

// NormalizeText composes and trims chat text, bounding its length.
func NormalizeText(text string) string {
	text = strings.TrimSpace(norm.NFC.String(text))
	if runes := []rune(text); len(runes) > maxChatRunes {
		text = string(runes[:maxChatRunes])
	}
	return text
}
