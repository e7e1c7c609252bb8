// internal/relay/frame.go
package relay

import "github.com/jason-s-yu/loto/internal/channel"

// Subprotocol is the websocket subprotocol spoken between broker and clients.
const Subprotocol = "loto-relay"

// Op names a broker frame.
type Op string

const (
	OpRegister   Op = "register"   // client -> broker: claim an identity
	OpRegistered Op = "registered" // broker -> client
	OpConnect    Op = "connect"    // dialer -> broker: open link to peer
	OpAccept     Op = "accept"     // broker -> acceptor: inbound link from peer
	OpOpen       Op = "open"       // broker -> both ends
	OpData       Op = "data"       // either direction, forwarded verbatim
	OpClose      Op = "close"      // either direction
	OpError      Op = "error"      // broker -> client
)

// Error codes carried by OpError frames.
const (
	CodeTaken           = "taken"
	CodePeerUnavailable = "peer-unavailable"
	CodeBadFrame        = "bad-frame"
	CodeNotRegistered   = "not-registered"
	CodeLinkExists      = "link-exists"
)

// Frame is the broker envelope. Payloads of OpData are opaque to the broker.
type Frame struct {
	Op      Op                   `json:"op"`
	ID      string               `json:"id,omitempty"`
	Link    string               `json:"link,omitempty"`
	Peer    string               `json:"peer,omitempty"`
	Data    []byte               `json:"data,omitempty"`
	Code    string               `json:"code,omitempty"`
	Message string               `json:"message,omitempty"`
	Relays  *channel.RelayConfig `json:"relays,omitempty"`
}

func errorFrame(link, code, msg string) Frame {
	return Frame{Op: OpError, Link: link, Code: code, Message: msg}
}
