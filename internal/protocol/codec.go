package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformed  = errors.New("malformed message")
	ErrUnknownTag = errors.New("unknown message type")
)

// Encode marshals a message to its JSON wire form.
func Encode(msg Message) ([]byte, error) {
	if !Known(msg.Type) {
		return nil, fmt.Errorf("encode %q: %w", msg.Type, ErrUnknownTag)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", msg.Type, err)
	}
	return data, nil
}

// Decode parses a JSON frame and rejects anything outside the closed tag set.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if !Known(msg.Type) {
		return Message{}, fmt.Errorf("decode %q: %w", msg.Type, ErrUnknownTag)
	}
	return msg, nil
}

// IsPing reports whether the frame is a keepalive, without a full decode.
func IsPing(msg Message) bool { return msg.Type == TagPing }
