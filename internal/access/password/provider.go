// Package password provides the shared admin password access provider.
package password

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	sdkaccess "github.com/askidaforma/askida-forma/sdk/access"
)

const (
	// ProviderType is the registry key of this provider.
	ProviderType = "shared-password"
	// DefaultName identifies the provider built from admin.password.
	DefaultName = "admin-password"
	// HeaderName carries the password on scripted admin requests.
	HeaderName = "X-Admin-Password"
)

var registerOnce sync.Once

// Register ensures the shared-password provider is available to the access manager.
func Register() {
	registerOnce.Do(func() {
		sdkaccess.RegisterProvider(ProviderType, newProvider)
	})
}

type provider struct {
	name   string
	secret string
	hashed bool
}

// IsHash reports whether secret is a bcrypt hash rather than a plain password.
func IsHash(secret string) bool {
	if !strings.HasPrefix(secret, "$2") {
		return false
	}
	_, err := bcrypt.Cost([]byte(secret))
	return err == nil
}

func newProvider(cfg *sdkaccess.ProviderConfig) (sdkaccess.Provider, error) {
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	return &provider{name: name, secret: cfg.Secret, hashed: IsHash(cfg.Secret)}, nil
}

func (p *provider) Identifier() string {
	if p == nil || p.name == "" {
		return DefaultName
	}
	return p.name
}

func (p *provider) Authenticate(_ context.Context, r *http.Request) (*sdkaccess.Result, error) {
	if p == nil || p.secret == "" {
		return nil, sdkaccess.ErrNotHandled
	}
	candidates := []struct {
		value  string
		source string
	}{
		{extractBearerToken(r.Header.Get("Authorization")), "authorization"},
		{r.Header.Get(HeaderName), "x-admin-password"},
	}
	presented := false
	for _, candidate := range candidates {
		if candidate.value == "" {
			continue
		}
		presented = true
		if p.matches(candidate.value) {
			return p.result(candidate.source), nil
		}
	}
	if !presented {
		return nil, sdkaccess.ErrNoCredentials
	}
	return nil, sdkaccess.ErrInvalidCredential
}

func (p *provider) Verify(_ context.Context, secret string) (*sdkaccess.Result, error) {
	if p == nil || p.secret == "" {
		return nil, sdkaccess.ErrNotHandled
	}
	if secret == "" {
		return nil, sdkaccess.ErrNoCredentials
	}
	if !p.matches(secret) {
		return nil, sdkaccess.ErrInvalidCredential
	}
	return p.result("login"), nil
}

func (p *provider) matches(candidate string) bool {
	if p.hashed {
		return bcrypt.CompareHashAndPassword([]byte(p.secret), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(p.secret), []byte(candidate)) == 1
}

func (p *provider) result(source string) *sdkaccess.Result {
	return &sdkaccess.Result{
		Provider:  p.Identifier(),
		Principal: "admin",
		Metadata: map[string]string{
			"source": source,
		},
	}
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return header
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return header
	}
	return strings.TrimSpace(parts[1])
}
