// Package session owns the local endpoint of one participant. It hosts a room
// or joins one, and hides allocation retries, relay selection and keepalive
// from the game reconcilers.
package session

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jason-s-yu/loto/internal/channel"
	"github.com/jason-s-yu/loto/internal/config"
	"github.com/jason-s-yu/loto/internal/credstore"
	"github.com/jason-s-yu/loto/internal/models"
	"github.com/jason-s-yu/loto/internal/protocol"
	"github.com/sirupsen/logrus"
)

var ErrSessionActive = errors.New("session already active")

// HostHandlers receive host-side events. Any may be nil.
type HostHandlers struct {
	OnReady      func(code string)
	OnMessage    func(from string, msg protocol.Message)
	OnPeerClosed func(from string)
}

// PlayerHandlers receive player-side events. OnError reports failures that
// happen after JoinRoom returned; failures before that are returned directly.
type PlayerHandlers struct {
	OnOpen    func()
	OnMessage func(msg protocol.Message)
	OnError   func(f *Failure)
}

// Option customises a Manager.
type Option func(*Manager)

// WithCodeSource replaces the random 4-digit room code generator.
func WithCodeSource(next func() string) Option {
	return func(m *Manager) { m.codeSource = next }
}

// Manager is one participant's session. It is safe for concurrent use.
type Manager struct {
	sub    channel.Substrate
	creds  credstore.Store
	cfg    config.Session
	logger *logrus.Logger

	codeSource func() string

	mu       sync.Mutex
	gen      uint64
	role     models.Role
	endpoint channel.Endpoint
	code     string
	peers    map[string]channel.Channel
	host     channel.Channel
	stopPing context.CancelFunc
	// playerID survives teardown so a rejoin keeps its seat on the host.
	playerID string
}

func NewManager(sub channel.Substrate, creds credstore.Store, cfg config.Session, logger *logrus.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Manager{
		sub:    sub,
		creds:  creds,
		cfg:    cfg,
		logger: logger,
		role:   models.RoleNone,
		peers:  make(map[string]channel.Channel),
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var rngMu sync.Mutex
	m.codeSource = func() string {
		rngMu.Lock()
		defer rngMu.Unlock()
		return strconv.Itoa(1000 + rng.Intn(9000))
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Role() models.Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// Code is the short room code while hosting.
func (m *Manager) Code() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

// LocalID is the substrate identity of this participant, empty when idle.
func (m *Manager) LocalID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endpoint == nil {
		return ""
	}
	return m.endpoint.ID()
}

// Peers lists the identities of open player channels, sorted.
func (m *Manager) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.peers))
	for id, ch := range m.peers {
		if ch.IsOpen() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) nextCode() string { return m.codeSource() }

func (m *Manager) identity(code string) string {
	if strings.HasPrefix(code, m.cfg.IdentityPrefix) {
		return code
	}
	return m.cfg.IdentityPrefix + code
}

// reserve claims the idle manager for role and returns the new generation.
func (m *Manager) reserve(role models.Role) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.role != models.RoleNone {
		return 0, ErrSessionActive
	}
	m.gen++
	m.role = role
	return m.gen, nil
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

// StartHosting allocates a room identity and begins accepting players. It
// returns the 4-digit code, which is also passed to OnReady.
func (m *Manager) StartHosting(ctx context.Context, h HostHandlers) (string, error) {
	gen, err := m.reserve(models.RoleHost)
	if err != nil {
		return "", err
	}

	relays := m.relayConfig(ctx)
	accept := func(ch channel.Channel) channel.Events { return m.hostEvents(gen, ch, h) }

	res, err := m.allocateHost(ctx, relays, accept)
	if err != nil {
		m.abort(gen)
		return "", allocationFailed(err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		_ = res.endpoint.Close()
		return "", allocationFailed(channel.ErrClosed)
	}
	m.endpoint = res.endpoint
	m.code = res.code
	m.startKeepaliveLocked(gen)
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{"code": res.code, "identity": res.endpoint.ID()}).Info("session: hosting")
	if h.OnReady != nil {
		h.OnReady(res.code)
	}
	return res.code, nil
}

func (m *Manager) hostEvents(gen uint64, ch channel.Channel, h HostHandlers) channel.Events {
	peer := ch.PeerID()
	log := m.logger.WithField("peer", peer)
	return channel.Events{
		OnOpen: func() {
			m.mu.Lock()
			if m.gen == gen {
				m.peers[peer] = ch
			}
			m.mu.Unlock()
			log.Info("session: player connected")
		},
		OnData: func(data []byte) {
			msg, ok := m.decode(peer, data)
			if !ok || !m.current(gen) {
				return
			}
			if h.OnMessage != nil {
				h.OnMessage(peer, msg)
			}
		},
		OnClose: func() {
			m.mu.Lock()
			removed := m.gen == gen && m.peers[peer] == ch
			if removed {
				delete(m.peers, peer)
			}
			m.mu.Unlock()
			if removed {
				log.Info("session: player disconnected")
				if h.OnPeerClosed != nil {
					h.OnPeerClosed(peer)
				}
			}
		},
		OnError: func(err error) {
			log.Warnf("session: channel error: %v", err)
		},
	}
}

// JoinRoom connects to the host behind code. It returns once the channel is
// open, or with a *Failure when it could not be opened. A manager that joined
// before asks for its previous identity again so the host recognises it.
func (m *Manager) JoinRoom(ctx context.Context, code string, h PlayerHandlers) error {
	code = strings.TrimSpace(code)
	gen, err := m.reserve(models.RolePlayer)
	if err != nil {
		return err
	}

	m.mu.Lock()
	prev := m.playerID
	m.mu.Unlock()

	relays := m.relayConfig(ctx)
	ep, err := m.allocate(ctx, prev, relays, nil)
	if prev != "" && errors.Is(err, channel.ErrIdentityTaken) {
		m.logger.WithField("identity", prev).Info("session: previous identity still held, joining anonymously")
		ep, err = m.allocate(ctx, "", relays, nil)
	}
	if err != nil {
		m.abort(gen)
		if errors.Is(err, channel.ErrUnsupported) {
			return unsupported(err)
		}
		return classifyConnect(code, err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		_ = ep.Close()
		return lostConnection()
	}
	m.endpoint = ep
	m.playerID = ep.ID()
	m.mu.Unlock()

	stored := make(chan struct{})
	opened := make(chan struct{})
	failed := make(chan *Failure, 1)
	var connected bool

	ev := channel.Events{
		OnOpen: func() {
			<-stored
			m.mu.Lock()
			if m.gen != gen || m.host == nil {
				m.mu.Unlock()
				return
			}
			connected = true
			m.startKeepaliveLocked(gen)
			m.mu.Unlock()

			m.logger.WithField("room", code).Info("session: connected to host")
			if h.OnOpen != nil {
				h.OnOpen()
			}
			close(opened)
		},
		OnData: func(data []byte) {
			msg, ok := m.decode("host", data)
			if !ok || !m.current(gen) {
				return
			}
			if h.OnMessage != nil {
				h.OnMessage(msg)
			}
		},
		OnError: func(err error) {
			m.mu.Lock()
			wasOpen := connected
			m.mu.Unlock()
			if wasOpen {
				m.logger.Warnf("session: host channel error: %v", err)
				return
			}
			select {
			case failed <- classifyConnect(code, err):
			default:
			}
		},
		OnClose: func() {
			m.mu.Lock()
			lost := connected && m.gen == gen
			m.mu.Unlock()
			if !lost {
				return
			}
			m.abort(gen)
			m.logger.WithField("room", code).Warn("session: lost connection to host")
			if h.OnError != nil {
				h.OnError(lostConnection())
			}
		},
	}

	ch, err := ep.Connect(ctx, m.identity(code), ev)
	if err != nil {
		close(stored)
		m.abort(gen)
		return classifyConnect(code, err)
	}
	m.mu.Lock()
	if m.gen == gen {
		m.host = ch
	}
	m.mu.Unlock()
	close(stored)

	timer := time.NewTimer(m.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-opened:
		return nil
	case f := <-failed:
		m.abort(gen)
		return f
	case <-timer.C:
		m.logger.WithField("room", code).Warn("session: connect timed out")
		_ = ch.Close()
		m.abort(gen)
		return connectTimeout()
	case <-ctx.Done():
		_ = ch.Close()
		m.abort(gen)
		return ctx.Err()
	}
}

// SendToHost unicasts to the host. It is a logged no-op unless this
// participant is a player with an open host channel.
func (m *Manager) SendToHost(msg protocol.Message) {
	m.mu.Lock()
	role, ch := m.role, m.host
	m.mu.Unlock()
	if role != models.RolePlayer || ch == nil || !ch.IsOpen() {
		m.logger.Warnf("session: cannot send %s to host, channel not open", msg.Type)
		return
	}
	m.send(ch, msg)
}

// SendToPeer unicasts to one player. No-op unless hosting with that peer open.
func (m *Manager) SendToPeer(peer string, msg protocol.Message) {
	m.mu.Lock()
	role, ch := m.role, m.peers[peer]
	m.mu.Unlock()
	if role != models.RoleHost || ch == nil || !ch.IsOpen() {
		m.logger.Warnf("session: cannot send %s to %s, channel not open", msg.Type, peer)
		return
	}
	m.send(ch, msg)
}

// Broadcast sends to every open player channel. Order is unspecified.
func (m *Manager) Broadcast(msg protocol.Message) {
	m.mu.Lock()
	if m.role != models.RoleHost {
		m.mu.Unlock()
		m.logger.Warnf("session: broadcast of %s ignored, not hosting", msg.Type)
		return
	}
	targets := m.openPeersLocked()
	m.mu.Unlock()

	data, err := protocol.Encode(msg)
	if err != nil {
		m.logger.Warnf("session: %v", err)
		return
	}
	for _, ch := range targets {
		if err := ch.Send(data); err != nil {
			m.logger.Debugf("session: broadcast to %s failed: %v", ch.PeerID(), err)
		}
	}
}

// Teardown closes every channel and releases the identity. Safe to call
// repeatedly.
func (m *Manager) Teardown() {
	m.mu.Lock()
	if m.role == models.RoleNone {
		m.mu.Unlock()
		return
	}
	ep := m.resetLocked()
	m.mu.Unlock()
	if ep != nil {
		_ = ep.Close()
	}
	m.logger.Info("session: torn down")
}

// abort tears down the session of gen if it is still current.
func (m *Manager) abort(gen uint64) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	ep := m.resetLocked()
	m.mu.Unlock()
	if ep != nil {
		_ = ep.Close()
	}
}

func (m *Manager) resetLocked() channel.Endpoint {
	m.gen++
	if m.stopPing != nil {
		m.stopPing()
		m.stopPing = nil
	}
	ep := m.endpoint
	m.endpoint = nil
	m.role = models.RoleNone
	m.code = ""
	m.host = nil
	m.peers = make(map[string]channel.Channel)
	return ep
}

func (m *Manager) openPeersLocked() []channel.Channel {
	out := make([]channel.Channel, 0, len(m.peers))
	for _, ch := range m.peers {
		if ch.IsOpen() {
			out = append(out, ch)
		}
	}
	return out
}

func (m *Manager) send(ch channel.Channel, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		m.logger.Warnf("session: %v", err)
		return
	}
	if err := ch.Send(data); err != nil {
		m.logger.Warnf("session: send %s to %s: %v", msg.Type, ch.PeerID(), err)
	}
}

// decode parses a frame and drops keepalives and garbage.
func (m *Manager) decode(from string, data []byte) (protocol.Message, bool) {
	msg, err := protocol.Decode(data)
	if err != nil {
		m.logger.WithField("peer", from).Warnf("session: dropping frame: %v", err)
		return protocol.Message{}, false
	}
	if protocol.IsPing(msg) {
		return protocol.Message{}, false
	}
	return msg, true
}

// startKeepaliveLocked pings every open channel on a fixed interval so NAT
// bindings stay warm. Caller holds m.mu.
func (m *Manager) startKeepaliveLocked(gen uint64) {
	if m.stopPing != nil || m.cfg.KeepaliveInterval <= 0 {
		return
	}
	ping, err := protocol.Encode(protocol.Ping())
	if err != nil {
		m.logger.Errorf("session: keepalive disabled: %v", err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopPing = cancel

	go func() {
		ticker := time.NewTicker(m.cfg.KeepaliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			m.mu.Lock()
			if m.gen != gen {
				m.mu.Unlock()
				return
			}
			targets := m.openPeersLocked()
			if m.host != nil && m.host.IsOpen() {
				targets = append(targets, m.host)
			}
			m.mu.Unlock()

			// A failed send errors that channel and its close handler cleans up.
			for _, ch := range targets {
				if err := ch.Send(ping); err != nil {
					m.logger.Debugf("session: keepalive to %s: %v", ch.PeerID(), err)
				}
			}
		}
	}()
}
