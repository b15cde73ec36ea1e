package identity

import (
	"context"
	"sync"

	"warden/pkg/platform/sentinel"
)

// InMemoryProvider is a fake identity provider for tests and development.
// Failure injection lets saga tests force specific steps to fail.
type InMemoryProvider struct {
	mu       sync.Mutex
	disabled map[string]bool

	// FailDisable / FailEnable, when non-nil, are returned instead of
	// mutating state.
	FailDisable error
	FailEnable  error
}

func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{disabled: make(map[string]bool)}
}

func (p *InMemoryProvider) DisableAccount(_ context.Context, accountName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailDisable != nil {
		return p.FailDisable
	}
	if accountName == "" {
		return sentinel.ErrNotFound
	}
	p.disabled[accountName] = true
	return nil
}

func (p *InMemoryProvider) EnableAccount(_ context.Context, accountName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailEnable != nil {
		return p.FailEnable
	}
	delete(p.disabled, accountName)
	return nil
}

// Disabled reports whether the account is currently disabled.
func (p *InMemoryProvider) Disabled(accountName string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disabled[accountName]
}
