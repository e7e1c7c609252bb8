// Package wsrelay is a Substrate that reaches peers through the loto relay
// broker over a single websocket per endpoint.
package wsrelay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/loto/internal/channel"
	"github.com/jason-s-yu/loto/internal/relay"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// Substrate dials the broker at URL for every allocation.
type Substrate struct {
	url    string
	logger *logrus.Logger
}

func New(url string, logger *logrus.Logger) *Substrate {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Substrate{url: url, logger: logger}
}

func (s *Substrate) Allocate(ctx context.Context, identity string, relays channel.RelayConfig, accept channel.AcceptFunc) (channel.Endpoint, error) {
	ws, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{
		Subprotocols: []string{relay.Subprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %v", s.url, channel.ErrNetwork, err)
	}

	if err := wsjson.Write(ctx, ws, relay.Frame{Op: relay.OpRegister, ID: identity, Relays: &relays}); err != nil {
		ws.Close(websocket.StatusInternalError, "register failed")
		return nil, fmt.Errorf("register: %w: %v", channel.ErrNetwork, err)
	}
	var reply relay.Frame
	if err := wsjson.Read(ctx, ws, &reply); err != nil {
		ws.Close(websocket.StatusInternalError, "register failed")
		return nil, fmt.Errorf("register: %w: %v", channel.ErrNetwork, err)
	}
	switch {
	case reply.Op == relay.OpRegistered:
	case reply.Op == relay.OpError && reply.Code == relay.CodeTaken:
		ws.Close(websocket.StatusNormalClosure, "")
		return nil, fmt.Errorf("allocate %s: %w", identity, channel.ErrIdentityTaken)
	default:
		ws.Close(websocket.StatusProtocolError, "unexpected reply")
		return nil, fmt.Errorf("register: %w: unexpected %s frame", channel.ErrNetwork, reply.Op)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ep := &endpoint{
		id:     reply.ID,
		ws:     ws,
		accept: accept,
		logger: s.logger,
		ctx:    runCtx,
		cancel: cancel,
		conns:  make(map[string]*channel.Conn),
	}
	go ep.readLoop()
	s.logger.WithField("identity", ep.id).Debug("wsrelay: registered")
	return ep, nil
}

type endpoint struct {
	id     string
	ws     *websocket.Conn
	accept channel.AcceptFunc
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	conns  map[string]*channel.Conn
}

type wsLink struct {
	ep   *endpoint
	link string
}

func (l *wsLink) Write(data []byte) error {
	return l.ep.send(relay.Frame{Op: relay.OpData, Link: l.link, Data: data})
}

func (l *wsLink) Hangup() error {
	l.ep.forget(l.link)
	return l.ep.send(relay.Frame{Op: relay.OpClose, Link: l.link})
}

func (e *endpoint) ID() string { return e.id }

func (e *endpoint) Connect(ctx context.Context, remote string, ev channel.Events) (channel.Channel, error) {
	linkID := uuid.NewString()
	conn := channel.NewConn(remote, &wsLink{ep: e, link: linkID}, ev, e.logger)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, channel.ErrClosed
	}
	e.conns[linkID] = conn
	e.mu.Unlock()

	if err := e.send(relay.Frame{Op: relay.OpConnect, Link: linkID, Peer: remote}); err != nil {
		e.forget(linkID)
		conn.Fail(fmt.Errorf("%w: %v", channel.ErrNetwork, err))
	}
	return conn, nil
}

func (e *endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	conns := make([]*channel.Conn, 0, len(e.conns))
	for _, c := range e.conns {
		conns = append(conns, c)
	}
	e.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	e.cancel()
	return e.ws.Close(websocket.StatusNormalClosure, "endpoint closed")
}

func (e *endpoint) send(f relay.Frame) error {
	ctx, cancel := context.WithTimeout(e.ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, e.ws, f)
}

func (e *endpoint) lookup(link string) *channel.Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conns[link]
}

func (e *endpoint) forget(link string) {
	e.mu.Lock()
	delete(e.conns, link)
	e.mu.Unlock()
}

func (e *endpoint) readLoop() {
	for {
		var f relay.Frame
		if err := wsjson.Read(e.ctx, e.ws, &f); err != nil {
			e.failAll(err)
			return
		}
		e.route(f)
	}
}

func (e *endpoint) route(f relay.Frame) {
	switch f.Op {
	case relay.OpAccept:
		conn := channel.Accept(f.Peer, &wsLink{ep: e, link: f.Link}, e.accept, e.logger)
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			_ = conn.Close()
			return
		}
		e.conns[f.Link] = conn
		e.mu.Unlock()
	case relay.OpOpen:
		if c := e.lookup(f.Link); c != nil {
			c.MarkOpen()
		}
	case relay.OpData:
		if c := e.lookup(f.Link); c != nil {
			c.Deliver(f.Data)
		}
	case relay.OpClose:
		if c := e.lookup(f.Link); c != nil {
			e.forget(f.Link)
			c.RemoteClosed()
		}
	case relay.OpError:
		c := e.lookup(f.Link)
		if c == nil {
			e.logger.Warnf("wsrelay: broker error %s: %s", f.Code, f.Message)
			return
		}
		e.forget(f.Link)
		if f.Code == relay.CodePeerUnavailable {
			c.Fail(channel.ErrPeerUnavailable)
			return
		}
		c.Fail(fmt.Errorf("%w: %s", channel.ErrNetwork, f.Message))
	default:
		e.logger.Debugf("wsrelay: ignoring %s frame", f.Op)
	}
}

// failAll errors every live channel once the broker connection is gone.
func (e *endpoint) failAll(cause error) {
	e.mu.Lock()
	closed := e.closed
	conns := e.conns
	e.conns = make(map[string]*channel.Conn)
	e.mu.Unlock()

	if !closed {
		e.logger.Warnf("wsrelay: lost broker connection: %v", cause)
	}
	for _, c := range conns {
		c.Fail(fmt.Errorf("%w: %v", channel.ErrNetwork, cause))
	}
}
