// internal/relay/server.go
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/loto/internal/middleware"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

const (
	registerTimeout = 10 * time.Second
	writeTimeout    = 5 * time.Second
	pingInterval    = 30 * time.Second
	outChanSize     = 64
)

// client is one registered websocket.
type client struct {
	id      string
	remote  string
	out     chan Frame
	logger  *logrus.Logger
	kick    context.CancelFunc
	writeMu sync.Mutex
	closed  bool
	kicked  bool
}

// write pushes a frame onto the client's queue without blocking. A client
// that cannot keep up is disconnected rather than silently losing frames;
// drop then closes its links and both ends rebuild their sessions.
func (c *client) write(f Frame) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed || c.kicked {
		return
	}
	select {
	case c.out <- f:
	default:
		c.kicked = true
		c.logger.Warnf("relay: out queue for %s full at %s frame, disconnecting", c.id, f.Op)
		if c.kick != nil {
			c.kick()
		}
	}
}

func (c *client) shutdown() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
}

type link struct {
	id       string
	dialer   *client
	acceptor *client
}

func (l *link) other(c *client) *client {
	switch c {
	case l.dialer:
		return l.acceptor
	case l.acceptor:
		return l.dialer
	}
	return nil
}

// Server is the rendezvous broker: an identity registry plus a frame switch
// between the two ends of each link.
type Server struct {
	logger *logrus.Logger

	mu      sync.Mutex
	clients map[string]*client
	links   map[string]*link
}

func NewServer(logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		logger:  logger,
		clients: make(map[string]*client),
		links:   make(map[string]*link),
	}
}

// Router returns the broker's routes wrapped in request logging.
func (s *Server) Router() http.Handler {
	mux := httprouter.New()
	mux.GET("/ws", s.ServeWS)
	mux.GET("/healthz", s.serveHealth)
	mux.GET("/invite/qr", s.serveQR)
	return middleware.LogMiddleware(s.logger)(mux)
}

// Identities lists currently registered identities, sorted.
func (s *Server) Identities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ServeWS upgrades the request and runs the client until its websocket drops.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the "+Subprotocol+" subprotocol")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	cl, ok := s.register(ctx, cancel, c, r.RemoteAddr)
	if !ok {
		return
	}
	middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, r.URL.Path)

	go s.writePump(ctx, c, cl)
	cl.write(Frame{Op: OpRegistered, ID: cl.id})

	err = s.readPump(ctx, c, cl)
	s.drop(cl)
	middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, err)
	c.Close(websocket.StatusNormalClosure, "")
}

// register reads the mandatory first frame and claims the identity.
func (s *Server) register(ctx context.Context, kick context.CancelFunc, c *websocket.Conn, remote string) (*client, bool) {
	regCtx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()

	var f Frame
	if err := wsjson.Read(regCtx, c, &f); err != nil || f.Op != OpRegister {
		c.Close(NotRegisteredError, "first frame must be register")
		return nil, false
	}

	id := f.ID
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	if _, taken := s.clients[id]; taken {
		s.mu.Unlock()
		s.logger.WithField("identity", id).Info("relay: identity already registered")
		_ = wsjson.Write(regCtx, c, errorFrame("", CodeTaken, "identity already registered"))
		c.Close(IdentityTakenError, "identity taken")
		return nil, false
	}
	cl := &client{id: id, remote: remote, out: make(chan Frame, outChanSize), logger: s.logger, kick: kick}
	s.clients[id] = cl
	s.mu.Unlock()

	fields := logrus.Fields{"identity": id, "remote": remote}
	if f.Relays != nil {
		fields["relays"] = len(f.Relays.Servers)
	}
	s.logger.WithFields(fields).Info("relay: registered")
	return cl, true
}

func (s *Server) readPump(ctx context.Context, c *websocket.Conn, cl *client) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			s.logger.Warnf("relay: non-text message from %s ignored", cl.id)
			continue
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Warnf("relay: invalid json from %s: %v", cl.id, err)
			cl.write(errorFrame("", CodeBadFrame, "invalid json"))
			continue
		}
		s.handle(cl, f)
	}
}

func (s *Server) writePump(ctx context.Context, c *websocket.Conn, cl *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	// A dead writer takes the reader down with it so drop runs.
	defer cl.kick()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.logger.Debugf("relay: ping to %s failed: %v", cl.id, err)
				return
			}
		case f, ok := <-cl.out:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c, f)
			cancel()
			if err != nil {
				s.logger.Warnf("relay: failed to write to %s: %v", cl.id, err)
				return
			}
		}
	}
}

// handle switches one frame from a registered client.
func (s *Server) handle(cl *client, f Frame) {
	switch f.Op {
	case OpConnect:
		s.connect(cl, f)
	case OpData:
		s.mu.Lock()
		l := s.links[f.Link]
		s.mu.Unlock()
		if l == nil {
			return
		}
		if to := l.other(cl); to != nil {
			to.write(Frame{Op: OpData, Link: f.Link, Data: f.Data})
		}
	case OpClose:
		s.mu.Lock()
		l := s.links[f.Link]
		var to *client
		if l != nil {
			to = l.other(cl)
			if to != nil {
				delete(s.links, f.Link)
			}
		}
		s.mu.Unlock()
		if to != nil {
			to.write(Frame{Op: OpClose, Link: f.Link})
		}
	default:
		cl.write(errorFrame(f.Link, CodeBadFrame, "unexpected op "+string(f.Op)))
	}
}

func (s *Server) connect(cl *client, f Frame) {
	if f.Link == "" || f.Peer == "" {
		cl.write(errorFrame(f.Link, CodeBadFrame, "connect needs link and peer"))
		return
	}
	s.mu.Lock()
	target := s.clients[f.Peer]
	_, exists := s.links[f.Link]
	if target == nil || target == cl || exists {
		s.mu.Unlock()
		code := CodePeerUnavailable
		if exists {
			code = CodeLinkExists
		}
		cl.write(errorFrame(f.Link, code, "cannot open link to "+f.Peer))
		return
	}
	s.links[f.Link] = &link{id: f.Link, dialer: cl, acceptor: target}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"link": f.Link, "from": cl.id, "to": target.id}).Debug("relay: link opened")
	target.write(Frame{Op: OpAccept, Link: f.Link, Peer: cl.id})
	target.write(Frame{Op: OpOpen, Link: f.Link})
	cl.write(Frame{Op: OpOpen, Link: f.Link, Peer: target.id})
}

// drop unregisters a client and closes the far end of all its links.
func (s *Server) drop(cl *client) {
	s.mu.Lock()
	if s.clients[cl.id] == cl {
		delete(s.clients, cl.id)
	}
	var notify []Frame
	var targets []*client
	for id, l := range s.links {
		if to := l.other(cl); to != nil {
			delete(s.links, id)
			notify = append(notify, Frame{Op: OpClose, Link: id})
			targets = append(targets, to)
		}
	}
	s.mu.Unlock()

	for i, to := range targets {
		to.write(notify[i])
	}
	cl.shutdown()
	s.logger.WithField("identity", cl.id).Info("relay: unregistered")
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Ok\n"))
}
