// Package channel is the narrow view of the point-to-point transport that the
// session layer consumes. A Substrate allocates a rendezvous identity and hands
// back an Endpoint; an Endpoint opens outbound Channels and receives inbound ones.
//
// Everything above this package talks to a Channel through Send, Close, IsOpen
// and the Events callbacks, never to a concrete transport.
package channel

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrIdentityTaken is returned by Allocate when the identity is already held.
	ErrIdentityTaken = errors.New("identity already allocated")
	// ErrPeerUnavailable fails a channel whose remote identity does not resolve.
	ErrPeerUnavailable = errors.New("peer unavailable")
	// ErrNetwork covers rendezvous, NAT and firewall class failures.
	ErrNetwork = errors.New("network failure")
	// ErrUnsupported means the environment cannot host the transport at all.
	ErrUnsupported = errors.New("transport unsupported")

	ErrNotOpen   = errors.New("channel not open")
	ErrClosed    = errors.New("channel closed")
	ErrQueueFull = errors.New("queue full")
)

// State is a channel's lifecycle position.
type State int

const (
	Connecting State = iota
	Open
	Closed
	// Errored is terminal. A channel that errors fires OnError then OnClose.
	Errored
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s == Closed || s == Errored }

// Events are the lifecycle callbacks of one channel. They are invoked one at a
// time, in order, from a goroutine owned by the channel. Any may be nil.
type Events struct {
	OnOpen  func()
	OnData  func(data []byte)
	OnClose func()
	OnError func(err error)
}

// Channel is a message-framed, bidirectional link to one peer.
type Channel interface {
	PeerID() string
	Send(data []byte) error
	Close() error
	IsOpen() bool
	State() State
}

// AcceptFunc is called for every inbound channel before it opens and returns
// the callbacks to bind to it.
type AcceptFunc func(ch Channel) Events

// Endpoint is a local identity allocated on a substrate.
type Endpoint interface {
	ID() string
	// Connect starts opening a channel to remote. The returned channel is in
	// Connecting; the outcome arrives through ev.
	Connect(ctx context.Context, remote string, ev Events) (Channel, error)
	// Close releases the identity and closes every channel of this endpoint.
	Close() error
}

// Substrate allocates endpoints. An empty identity requests an anonymous one.
type Substrate interface {
	Allocate(ctx context.Context, identity string, relays RelayConfig, accept AcceptFunc) (Endpoint, error)
}
