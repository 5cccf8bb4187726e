package access

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// Provider validates admin credentials.
type Provider interface {
	Identifier() string
	// Authenticate inspects request headers.
	Authenticate(ctx context.Context, r *http.Request) (*Result, error)
	// Verify checks a secret submitted through the login form.
	Verify(ctx context.Context, secret string) (*Result, error)
}

// Result conveys authentication outcome.
type Result struct {
	Provider  string
	Principal string
	Metadata  map[string]string
}

// ProviderConfig declares one provider instance.
type ProviderConfig struct {
	Name   string
	Type   string
	Secret string
}

// ProviderFactory builds a provider from configuration data.
type ProviderFactory func(cfg *ProviderConfig) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ProviderFactory)
)

// RegisterProvider registers a provider factory for a given type identifier.
func RegisterProvider(typ string, factory ProviderFactory) {
	if typ == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[typ] = factory
	registryMu.Unlock()
}

func BuildProvider(cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("access: nil provider config")
	}
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("access: provider type %q is not registered", cfg.Type)
	}
	provider, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("access: failed to build provider %q: %w", cfg.Name, err)
	}
	return provider, nil
}

// BuildProviders constructs every provider in cfgs, skipping entries without a type.
func BuildProviders(cfgs []ProviderConfig) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfgs))
	for i := range cfgs {
		if cfgs[i].Type == "" {
			continue
		}
		provider, err := BuildProvider(&cfgs[i])
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}
	return providers, nil
}
