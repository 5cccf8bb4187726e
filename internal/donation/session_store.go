package donation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/askidaforma/askida-forma/internal/card"
	"github.com/askidaforma/askida-forma/internal/checkout"
)

const (
	// SessionTTL is the default session expiration time (24 hours).
	SessionTTL = 24 * time.Hour
	// TokenLength is the length of generated session tokens in bytes.
	TokenLength = 32
)

// Session is one visitor's browser session. It owns the visitor's checkout flow; all access
// to the flow goes through Lock/Unlock.
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time

	admin atomic.Bool

	mu      sync.Mutex
	flow    *checkout.Controller
	writing bool
	// captures counts entries into CapturingIdentity so a write started before a back and
	// forth is recognised as stale.
	captures uint64
	// receipt is the card of the confirmed donation, kept so every download shows the same
	// serial.
	receipt *card.Card
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Lock serialises flow transitions of this session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// Flow returns the checkout controller. The caller holds the session lock.
func (s *Session) Flow() *checkout.Controller { return s.flow }

// Role returns the session role. It does not take the session lock.
func (s *Session) Role() string {
	if s.admin.Load() {
		return RoleAdmin
	}
	return RoleVisitor
}

// SetRole changes the session role.
func (s *Session) SetRole(role string) {
	s.admin.Store(role == RoleAdmin)
}

// beginWrite marks an identity write as in flight. It reports false when one already is.
// The caller holds the session lock.
func (s *Session) beginWrite() bool {
	if s.writing {
		return false
	}
	s.writing = true
	return true
}

// endWrite clears the in-flight mark. The caller holds the session lock.
func (s *Session) endWrite() { s.writing = false }

// SessionStore manages visitor sessions in memory.
type SessionStore struct {
	sessions sync.Map
	ttl      time.Duration
}

// NewSessionStore creates a new session store with the default TTL.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		ttl: SessionTTL,
	}
}

// NewSessionStoreWithTTL creates a new session store with a custom TTL.
func NewSessionStoreWithTTL(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &SessionStore{
		ttl: ttl,
	}
}

// TTL returns the session lifetime.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

// GenerateToken generates a cryptographically secure random token.
// Returns a hex-encoded string of TokenLength bytes.
func GenerateToken() (string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// Create creates a visitor session with a fresh checkout flow in Browsing.
func (s *SessionStore) Create() (*Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:        token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		flow:      checkout.NewController(),
	}

	s.sessions.Store(token, session)
	return session, nil
}

// Get retrieves a session by its token.
// Returns nil if the session doesn't exist or has expired.
func (s *SessionStore) Get(sessionID string) *Session {
	value, ok := s.sessions.Load(sessionID)
	if !ok {
		return nil
	}

	session, ok := value.(*Session)
	if !ok {
		return nil
	}

	if session.IsExpired() {
		s.sessions.Delete(sessionID)
		return nil
	}

	return session
}

// Delete removes a session by its token.
func (s *SessionStore) Delete(sessionID string) {
	s.sessions.Delete(sessionID)
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	n := 0
	s.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Cleanup removes all expired sessions and returns how many were removed.
func (s *SessionStore) Cleanup() int {
	now := time.Now()
	removed := 0
	s.sessions.Range(func(key, value any) bool {
		if session, ok := value.(*Session); ok {
			if now.After(session.ExpiresAt) {
				s.sessions.Delete(key)
				removed++
			}
		}
		return true
	})
	return removed
}

// RunCleanup sweeps expired sessions every interval until ctx is done.
func (s *SessionStore) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 {
				log.WithField("removed", n).Debug("expired sessions swept")
			}
		}
	}
}
