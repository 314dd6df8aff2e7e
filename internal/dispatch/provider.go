package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/parley-dev/parley/internal/errors"
)

// ProviderRequest is the contract for one cloud chat call. Wire-level shapes
// belong to each provider's own client.
type ProviderRequest struct {
	Credential   string
	Model        string
	Prompt       string
	SystemPrompt string
}

// ProviderResponse is a cloud provider's reply.
type ProviderResponse struct {
	Content    string
	Modalities []string
}

// Provider is a cloud-hosted chat endpoint.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ProviderRequest) (ProviderResponse, error)
}

// ProviderRegistry maps provider names to clients. Registration happens at
// startup; lookups are concurrent.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewProviderRegistry returns an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: map[string]Provider{}}
}

// Register adds or replaces a provider client.
func (r *ProviderRegistry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the named provider or ErrUnknownProvider.
func (r *ProviderRegistry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists the registered provider names.
func (r *ProviderRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	return out
}

// CredentialStore resolves a stored credential for a provider.
type CredentialStore interface {
	Credential(provider string) (string, bool)
}

// MemoryCredentials is an in-memory CredentialStore, populated from
// configuration at startup.
type MemoryCredentials struct {
	mu    sync.RWMutex
	creds map[string]string
}

// NewMemoryCredentials creates an empty credential store.
func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{creds: map[string]string{}}
}

// Set stores a credential for a provider. An empty credential removes it.
func (m *MemoryCredentials) Set(provider, credential string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if credential == "" {
		delete(m.creds, provider)
		return
	}
	m.creds[provider] = credential
}

// Credential implements CredentialStore.
func (m *MemoryCredentials) Credential(provider string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.creds[provider]
	return cred, ok
}
