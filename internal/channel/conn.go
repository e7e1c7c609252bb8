// internal/channel/conn.go
package channel

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	outboxSize = 64
	inboxSize  = 256
)

// Link is the transport-specific half of a Conn.
type Link interface {
	// Write carries one frame to the remote end.
	Write(data []byte) error
	// Hangup tells the remote end this side closed the channel.
	Hangup() error
}

// Conn implements Channel on top of a Link. It owns the lifecycle state
// machine, the outbound queue and the goroutine that runs Events.
//
// Legal transitions: Connecting -> Open|Closed|Errored, Open -> Closed|Errored.
// Each callback fires at most once per transition.
type Conn struct {
	peer   string
	link   Link
	events Events
	logger *logrus.Logger

	mu    sync.Mutex
	state State
	final func()

	outbox chan []byte
	inbox  chan func()
	quit   chan struct{}
	quitMu sync.Once
}

// NewConn creates a channel in Connecting bound to ev.
func NewConn(peer string, link Link, ev Events, logger *logrus.Logger) *Conn {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &Conn{
		peer:   peer,
		link:   link,
		events: ev,
		logger: logger,
		state:  Connecting,
		outbox: make(chan []byte, outboxSize),
		inbox:  make(chan func(), inboxSize),
		quit:   make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// Accept creates an inbound channel and binds the events chosen by accept.
func Accept(peer string, link Link, accept AcceptFunc, logger *logrus.Logger) *Conn {
	c := NewConn(peer, link, Events{}, logger)
	if accept != nil {
		ev := accept(c)
		c.mu.Lock()
		c.events = ev
		c.mu.Unlock()
	}
	return c
}

func (c *Conn) PeerID() string { return c.peer }

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) IsOpen() bool { return c.State() == Open }

// Send queues data for the remote end without blocking. A full queue errors
// the channel instead of dropping the frame, so both ends tear down and the
// session can rebuild from a fresh snapshot.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	if c.state != Open {
		c.mu.Unlock()
		return ErrNotOpen
	}
	select {
	case c.outbox <- data:
		c.mu.Unlock()
		return nil
	default:
	}
	c.mu.Unlock()
	c.overflow("outbound")
	return ErrQueueFull
}

// Close closes the channel from this side and notifies the remote end.
func (c *Conn) Close() error {
	if !c.terminate(Closed, nil) {
		return nil
	}
	return c.link.Hangup()
}

// MarkOpen moves Connecting to Open and starts the outbound pump.
func (c *Conn) MarkOpen() bool {
	c.mu.Lock()
	if c.state != Connecting {
		c.mu.Unlock()
		return false
	}
	c.state = Open
	go c.pump()
	queued := true
	if fn := c.events.OnOpen; fn != nil {
		queued = c.enqueueLocked(fn)
	}
	c.mu.Unlock()
	if !queued {
		c.overflow("event")
	}
	return true
}

// Deliver hands an inbound frame to OnData. Frames arriving outside Open are
// discarded. A frame that does not fit the event queue errors the channel.
func (c *Conn) Deliver(data []byte) {
	c.mu.Lock()
	if c.state != Open {
		c.mu.Unlock()
		return
	}
	queued := true
	if fn := c.events.OnData; fn != nil {
		queued = c.enqueueLocked(func() { fn(data) })
	}
	c.mu.Unlock()
	if !queued {
		c.overflow("event")
	}
}

// RemoteClosed records that the remote end hung up.
func (c *Conn) RemoteClosed() { c.terminate(Closed, nil) }

// Fail moves the channel to Errored. OnError then OnClose fire.
func (c *Conn) Fail(err error) { c.terminate(Errored, err) }

// overflow errors the channel and hangs up the link so the remote end sees
// the loss too.
func (c *Conn) overflow(queue string) {
	c.logger.Warnf("channel %s: %s queue full, failing channel", c.peer, queue)
	if c.terminate(Errored, fmt.Errorf("%s: %w", queue, ErrQueueFull)) {
		_ = c.link.Hangup()
	}
}

func (c *Conn) terminate(to State, err error) bool {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return false
	}
	c.state = to
	ev := c.events
	c.final = func() {
		if to == Errored && ev.OnError != nil {
			ev.OnError(err)
		}
		if ev.OnClose != nil {
			ev.OnClose()
		}
	}
	c.mu.Unlock()

	if to == Errored {
		c.logger.Debugf("channel %s errored: %v", c.peer, err)
	}
	c.quitMu.Do(func() { close(c.quit) })
	return true
}

// enqueueLocked must be called with c.mu held. It reports false when the
// event queue is full.
func (c *Conn) enqueueLocked(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	default:
		return false
	}
}

func (c *Conn) dispatch() {
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.quit:
			for {
				select {
				case fn := <-c.inbox:
					fn()
				default:
					c.mu.Lock()
					final := c.final
					c.mu.Unlock()
					if final != nil {
						final()
					}
					return
				}
			}
		}
	}
}

func (c *Conn) pump() {
	for {
		select {
		case <-c.quit:
			return
		case data := <-c.outbox:
			if err := c.link.Write(data); err != nil {
				c.logger.Warnf("channel %s: write failed: %v", c.peer, err)
				c.Fail(err)
				return
			}
		}
	}
}
