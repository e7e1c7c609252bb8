// Package credstore persists the single user-supplied relay credential triple.
package credstore

import (
	"context"
	"strings"
	"sync"
)

// Credentials is a relay endpoint with its user/credential pair.
type Credentials struct {
	Endpoint   string `json:"turnUrl"`
	User       string `json:"turnUser"`
	Credential string `json:"turnPass"`
}

// Complete reports whether all three fields are set. Partial credentials are
// never used.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.User) != "" &&
		strings.TrimSpace(c.Credential) != ""
}

// Store loads and saves the credential triple. A store with nothing saved
// returns zero Credentials and no error.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
}

// Memory keeps credentials for the process lifetime.
type Memory struct {
	mu    sync.Mutex
	creds Credentials
}

func NewMemory(creds Credentials) *Memory { return &Memory{creds: creds} }

func (m *Memory) Load(context.Context) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, nil
}

func (m *Memory) Save(_ context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
	return nil
}
