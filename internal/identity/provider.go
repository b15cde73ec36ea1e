// Package identity talks to the external identity provider. Accounts are
// addressed by account name, which is resolved from the profile; the profile
// store key is never meaningful here.
package identity

import "context"

//go:generate mockgen -source=provider.go -destination=mocks/mocks.go -package=mocks Provider

// Provider is the enable/disable surface of the identity provider's admin API.
type Provider interface {
	DisableAccount(ctx context.Context, accountName string) error
	EnableAccount(ctx context.Context, accountName string) error
}
