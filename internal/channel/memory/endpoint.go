package memory

import (
	"context"
	"sync"

	"github.com/jason-s-yu/loto/internal/channel"
)

type endpoint struct {
	hub    *Hub
	id     string
	accept channel.AcceptFunc

	mu     sync.Mutex
	closed bool
	// local side -> remote side (nil until the remote side exists)
	conns map[*channel.Conn]*channel.Conn
}

// pipe carries frames from one side to the other.
type pipe struct {
	mu     sync.Mutex
	target *channel.Conn
}

func (p *pipe) set(c *channel.Conn) {
	p.mu.Lock()
	p.target = c
	p.mu.Unlock()
}

func (p *pipe) get() *channel.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

func (p *pipe) Write(data []byte) error {
	t := p.get()
	if t == nil {
		return channel.ErrNotOpen
	}
	t.Deliver(append([]byte(nil), data...))
	return nil
}

func (p *pipe) Hangup() error {
	if t := p.get(); t != nil {
		t.RemoteClosed()
	}
	return nil
}

func (e *endpoint) ID() string { return e.id }

func (e *endpoint) Connect(ctx context.Context, remote string, ev channel.Events) (channel.Channel, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, channel.ErrClosed
	}
	e.mu.Unlock()

	toRemote := &pipe{}
	local := channel.NewConn(remote, toRemote, ev, e.hub.logger)
	e.track(local, nil)

	go func() {
		target, silent := e.hub.lookup(remote)
		if silent {
			return
		}
		if target == nil {
			local.Fail(channel.ErrPeerUnavailable)
			return
		}
		toLocal := &pipe{target: local}
		inbound := channel.Accept(e.id, toLocal, target.accept, e.hub.logger)
		if !target.track(inbound, local) {
			local.Fail(channel.ErrPeerUnavailable)
			return
		}
		toRemote.set(inbound)
		e.track(local, inbound)

		// The accepting side opens first so its handlers are live before the
		// dialer starts sending.
		inbound.MarkOpen()
		if !local.MarkOpen() {
			inbound.RemoteClosed()
		}
	}()
	return local, nil
}

func (e *endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	conns := make([]*channel.Conn, 0, len(e.conns))
	for c := range e.conns {
		conns = append(conns, c)
	}
	e.conns = map[*channel.Conn]*channel.Conn{}
	e.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	e.hub.release(e)
	return nil
}

func (e *endpoint) track(local, remote *channel.Conn) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.conns[local] = remote
	return true
}

func (e *endpoint) snapshot() map[*channel.Conn]*channel.Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[*channel.Conn]*channel.Conn, len(e.conns))
	for k, v := range e.conns {
		if !k.State().Terminal() {
			out[k] = v
		}
	}
	return out
}
