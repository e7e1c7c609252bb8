package session

import (
	"context"

	"github.com/jason-s-yu/loto/internal/channel"
	"github.com/jason-s-yu/loto/internal/credstore"
)

// MergeRelayConfig puts a complete credential triple ahead of the default
// list. Incomplete credentials leave the defaults untouched.
func MergeRelayConfig(creds credstore.Credentials) channel.RelayConfig {
	defaults := channel.DefaultRelays()
	if !creds.Complete() {
		return defaults
	}
	servers := make([]channel.RelayServer, 0, len(defaults.Servers)+1)
	servers = append(servers, channel.RelayServer{
		URLs:       []string{creds.Endpoint},
		Username:   creds.User,
		Credential: creds.Credential,
	})
	servers = append(servers, defaults.Servers...)
	return channel.RelayConfig{Servers: servers}
}

// relayConfig reads the store once. A store error falls back to defaults.
func (m *Manager) relayConfig(ctx context.Context) channel.RelayConfig {
	if m.creds == nil {
		return channel.DefaultRelays()
	}
	creds, err := m.creds.Load(ctx)
	if err != nil {
		m.logger.Warnf("session: could not load relay credentials, using defaults: %v", err)
		return channel.DefaultRelays()
	}
	return MergeRelayConfig(creds)
}
