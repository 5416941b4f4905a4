package application

import (
	"errors"
	"sync"

	"github.com/routeintel/fleetpanel/internal/domain/port/driven"
)

// ErrPlatformNotConfigured is returned by operations that need a platform
// client before credentials have been supplied.
var ErrPlatformNotConfigured = errors.New("platform credentials not configured")

// PlatformClientProvider enables runtime hot-swap of the platform client.
// It holds a mutex-protected reference to the current driven.PlatformClient,
// allowing credential updates to take effect without restarting the service.
type PlatformClientProvider struct {
	mu     sync.RWMutex
	client driven.PlatformClient
}

// NewPlatformClientProvider creates a new provider with the given initial
// client. client may be nil if no credentials are available at startup.
func NewPlatformClientProvider(client driven.PlatformClient) *PlatformClientProvider {
	return &PlatformClientProvider{client: client}
}

// Get returns the current platform client. Callers should check for nil if
// the provider was created without initial credentials.
func (p *PlatformClientProvider) Get() driven.PlatformClient {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

// Replace swaps the current client for a new one built from fresh
// credentials. The next caller of Get() receives the new client.
func (p *PlatformClientProvider) Replace(client driven.PlatformClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = client
}

// HasClient returns true if a non-nil client is currently held.
func (p *PlatformClientProvider) HasClient() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil
}
