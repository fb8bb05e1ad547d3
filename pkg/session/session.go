// Package session holds derived key material in memory between operations
// so the master password is needed once per unlock, not once per command.
// Sessions expire after an idle timeout and are wiped on logout, expiry,
// and master password change.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mossfield13/passctl/pkg/crypto"
)

// DefaultIdleTimeout applies when the manager is built with a
// non-positive timeout.
const DefaultIdleTimeout = 5 * time.Minute

const tokenLength = 32

var (
	// ErrNotAuthenticated means the token does not name a live session.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrExpired means the session existed but sat idle past the timeout.
	ErrExpired = errors.New("session: session expired")
)

type session struct {
	keys     *crypto.KeySet
	lastUsed time.Time
}

// Manager tracks the active session. Only one session lives at a time:
// starting a new one wipes and replaces any existing session.
type Manager struct {
	mu          sync.Mutex
	idleTimeout time.Duration
	sessions    map[string]*session
	now         func() time.Time
}

// NewManager builds a manager with the given idle timeout.
func NewManager(idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*session),
		now:         time.Now,
	}
}

// Start registers keys under a fresh random token and becomes their owner:
// the manager wipes them when the session ends.
func (m *Manager) Start(keys *crypto.KeySet) (string, error) {
	raw := make([]byte, tokenLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("session: failed to generate token: %w", err)
	}
	token := hex.EncodeToString(raw)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.invalidateLocked()
	m.sessions[token] = &session{keys: keys, lastUsed: m.now()}
	return token, nil
}

// Resolve exchanges a token for its key set and extends the idle window.
func (m *Manager) Resolve(token string) (*crypto.KeySet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNotAuthenticated
	}

	now := m.now()
	if now.Sub(s.lastUsed) > m.idleTimeout {
		s.keys.Wipe()
		delete(m.sessions, token)
		return nil, ErrExpired
	}

	s.lastUsed = now
	return s.keys, nil
}

// Peek reports whether the token currently resolves, without extending
// the idle window. Suited to status displays.
func (m *Manager) Peek(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return false
	}
	return m.now().Sub(s.lastUsed) <= m.idleTimeout
}

// Logout ends the session and wipes its keys.
func (m *Manager) Logout(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return ErrNotAuthenticated
	}
	s.keys.Wipe()
	delete(m.sessions, token)
	return nil
}

// InvalidateAll wipes every session, live or expired. Called after a
// master password change so old keys cannot be used again.
func (m *Manager) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateLocked()
}

func (m *Manager) invalidateLocked() {
	for token, s := range m.sessions {
		s.keys.Wipe()
		delete(m.sessions, token)
	}
}
