package models

// ChatMessage is one entry in a participant's chat log. Ordering is receipt order.
type ChatMessage struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	IsSystem  bool   `json:"isSystem,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
