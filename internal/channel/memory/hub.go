// Package memory is an in-process Substrate. Channels opened through one Hub
// reach endpoints allocated on the same Hub. It backs tests and local
// single-machine play.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/loto/internal/channel"
	"github.com/sirupsen/logrus"
)

// Hub is the shared rendezvous point of the in-memory substrate.
type Hub struct {
	logger *logrus.Logger

	mu          sync.Mutex
	endpoints   map[string]*endpoint
	silenced    map[string]bool
	relays      map[string]channel.RelayConfig
	allocErrs   []error
	allocations int
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		logger:    logger,
		endpoints: make(map[string]*endpoint),
		silenced:  make(map[string]bool),
		relays:    make(map[string]channel.RelayConfig),
	}
}

// Allocate registers identity on the hub.
func (h *Hub) Allocate(ctx context.Context, identity string, relays channel.RelayConfig, accept channel.AcceptFunc) (channel.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allocations++

	if len(h.allocErrs) > 0 {
		err := h.allocErrs[0]
		h.allocErrs = h.allocErrs[1:]
		return nil, err
	}
	if identity == "" {
		identity = uuid.NewString()
	}
	if _, taken := h.endpoints[identity]; taken {
		return nil, fmt.Errorf("allocate %s: %w", identity, channel.ErrIdentityTaken)
	}
	ep := &endpoint{
		hub:    h,
		id:     identity,
		accept: accept,
		conns:  make(map[*channel.Conn]*channel.Conn),
	}
	h.endpoints[identity] = ep
	h.relays[identity] = relays
	h.logger.Debugf("memory hub: allocated %s", identity)
	return ep, nil
}

// FailNextAllocations makes the next len(errs) Allocate calls return errs in order.
func (h *Hub) FailNextAllocations(errs ...error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allocErrs = append(h.allocErrs, errs...)
}

// Allocations reports how many Allocate calls the hub has seen.
func (h *Hub) Allocations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocations
}

// Silence makes connects to identity hang in Connecting forever, like a
// rendezvous that never answers.
func (h *Hub) Silence(identity string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.silenced[identity] = true
}

// Partition drops every open channel touching identity with ErrNetwork on
// both ends. The endpoint stays allocated.
func (h *Hub) Partition(identity string) {
	h.mu.Lock()
	ep := h.endpoints[identity]
	h.mu.Unlock()
	if ep == nil {
		return
	}
	for local, remote := range ep.snapshot() {
		local.Fail(channel.ErrNetwork)
		if remote != nil {
			remote.Fail(channel.ErrNetwork)
		}
	}
}

// LastRelayConfig returns the relay config identity was allocated with.
func (h *Hub) LastRelayConfig(identity string) (channel.RelayConfig, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cfg, ok := h.relays[identity]
	return cfg, ok
}

// Registered reports whether identity currently holds an endpoint.
func (h *Hub) Registered(identity string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.endpoints[identity]
	return ok
}

func (h *Hub) lookup(identity string) (*endpoint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.silenced[identity] {
		return nil, true
	}
	return h.endpoints[identity], false
}

func (h *Hub) release(ep *endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.endpoints[ep.id] == ep {
		delete(h.endpoints, ep.id)
	}
}
