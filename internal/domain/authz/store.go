package authz

import (
	"context"
	"errors"
)

// Sentinel errors for auth store operations.
var (
	// ErrIdentityNotFound is returned when an identity doesn't exist.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrKeyNotFound is returned when an API key doesn't exist.
	ErrKeyNotFound = errors.New("api key not found")
)

// AuthStore persists identities and API keys.
// Interface owned by the domain; implementations live in adapters.
type AuthStore interface {
	// GetIdentity returns an identity by ID.
	// Returns ErrIdentityNotFound if the identity doesn't exist.
	GetIdentity(ctx context.Context, id string) (*Identity, error)

	// ListIdentities returns all identities.
	ListIdentities(ctx context.Context) ([]*Identity, error)

	// GetAPIKey returns an API key by its hashed value.
	// Returns ErrKeyNotFound if the key doesn't exist.
	GetAPIKey(ctx context.Context, keyHash string) (*APIKey, error)

	// ListAPIKeys returns all API keys.
	ListAPIKeys(ctx context.Context) ([]*APIKey, error)

	// SaveAPIKey creates or updates an API key.
	SaveAPIKey(ctx context.Context, key *APIKey) error
}
