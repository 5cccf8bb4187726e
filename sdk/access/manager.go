package access

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

var (
	// ErrNoCredentials is returned when the request carries nothing to check.
	ErrNoCredentials = errors.New("access: no credentials provided")
	// ErrInvalidCredential is returned when a credential was presented and rejected.
	ErrInvalidCredential = errors.New("access: invalid credential")
	// ErrNotHandled lets a provider defer to the next one.
	ErrNotHandled = errors.New("access: not handled")
	// ErrNoProviders is returned when no provider is configured, which locks the admin
	// console.
	ErrNoProviders = errors.New("access: no providers configured")
)

// Manager runs credentials through the configured providers in order.
type Manager struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Providers returns a copy of the current provider list.
func (m *Manager) Providers() []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Provider(nil), m.providers...)
}

// SetProviders swaps the provider list.
func (m *Manager) SetProviders(providers []Provider) {
	m.mu.Lock()
	m.providers = append([]Provider(nil), providers...)
	m.mu.Unlock()
}

// Authenticate checks request headers against every provider.
func (m *Manager) Authenticate(ctx context.Context, r *http.Request) (*Result, error) {
	return m.run(func(p Provider) (*Result, error) { return p.Authenticate(ctx, r) })
}

// Verify checks a submitted secret against every provider.
func (m *Manager) Verify(ctx context.Context, secret string) (*Result, error) {
	if secret == "" {
		return nil, ErrNoCredentials
	}
	return m.run(func(p Provider) (*Result, error) { return p.Verify(ctx, secret) })
}

func (m *Manager) run(check func(Provider) (*Result, error)) (*Result, error) {
	providers := m.Providers()
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	invalid := false
	for _, p := range providers {
		if p == nil {
			continue
		}
		res, err := check(p)
		switch {
		case err == nil:
			return res, nil
		case errors.Is(err, ErrNoCredentials):
		case errors.Is(err, ErrInvalidCredential):
			invalid = true
		case errors.Is(err, ErrNotHandled):
		default:
			return nil, err
		}
	}
	if invalid {
		return nil, ErrInvalidCredential
	}
	return nil, ErrNoCredentials
}
