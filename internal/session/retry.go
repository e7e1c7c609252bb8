package session

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jason-s-yu/loto/internal/channel"
)

// linearBackOff waits step, 2*step, 3*step, ...
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() { b.n = 0 }

// allocate claims identity, retrying transient substrate errors with a
// constant delay. Conflicts and unsupported environments are not retried here.
func (m *Manager) allocate(ctx context.Context, identity string, relays channel.RelayConfig, accept channel.AcceptFunc) (channel.Endpoint, error) {
	ep, err := backoff.Retry(ctx, func() (channel.Endpoint, error) {
		ep, err := m.sub.Allocate(ctx, identity, relays, accept)
		if err == nil {
			return ep, nil
		}
		if errors.Is(err, channel.ErrIdentityTaken) || errors.Is(err, channel.ErrUnsupported) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(m.cfg.AllocBackoff)),
		backoff.WithMaxTries(m.cfg.AllocRetries+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			m.logger.Warnf("session: allocating %q failed, retrying in %s: %v", identity, wait, err)
		}),
	)
	// the outer conflict loop must see the bare error, not a permanent marker
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return ep, err
}

type hosted struct {
	endpoint channel.Endpoint
	code     string
}

// allocateHost picks a fresh code for every conflict, backing off linearly.
func (m *Manager) allocateHost(ctx context.Context, relays channel.RelayConfig, accept channel.AcceptFunc) (hosted, error) {
	return backoff.Retry(ctx, func() (hosted, error) {
		code := m.nextCode()
		ep, err := m.allocate(ctx, m.identity(code), relays, accept)
		if err == nil {
			return hosted{endpoint: ep, code: code}, nil
		}
		if errors.Is(err, channel.ErrIdentityTaken) {
			m.logger.Infof("session: room code %s taken, regenerating", code)
			return hosted{}, err
		}
		return hosted{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(&linearBackOff{step: m.cfg.ConflictBackoff}),
		backoff.WithMaxTries(m.cfg.ConflictRetries),
	)
}
