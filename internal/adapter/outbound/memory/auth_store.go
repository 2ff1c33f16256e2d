// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"sync"

	"github.com/opsgate/opsgate/internal/domain/authz"
)

// AuthStore implements authz.AuthStore with in-memory maps.
// Thread-safe for concurrent access. For development/testing only.
type AuthStore struct {
	keys       map[string]*authz.APIKey   // keyHash -> APIKey
	identities map[string]*authz.Identity // ID -> Identity
	mu         sync.RWMutex
}

// NewAuthStore creates a new in-memory auth store.
func NewAuthStore() *AuthStore {
	return &AuthStore{
		keys:       make(map[string]*authz.APIKey),
		identities: make(map[string]*authz.Identity),
	}
}

// GetIdentity retrieves an identity by ID.
// Returns authz.ErrIdentityNotFound if it doesn't exist.
func (s *AuthStore) GetIdentity(ctx context.Context, id string) (*authz.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[id]
	if !ok {
		return nil, authz.ErrIdentityNotFound
	}
	return copyIdentity(identity), nil
}

// ListIdentities returns all identities.
func (s *AuthStore) ListIdentities(ctx context.Context) ([]*authz.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*authz.Identity, 0, len(s.identities))
	for _, identity := range s.identities {
		result = append(result, copyIdentity(identity))
	}
	return result, nil
}

// GetAPIKey retrieves an API key by its hash.
// Returns authz.ErrKeyNotFound if the key doesn't exist.
func (s *AuthStore) GetAPIKey(ctx context.Context, keyHash string) (*authz.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[keyHash]
	if !ok {
		return nil, authz.ErrKeyNotFound
	}
	keyCopy := *key
	return &keyCopy, nil
}

// ListAPIKeys returns all stored API keys for iteration-based verification.
func (s *AuthStore) ListAPIKeys(ctx context.Context) ([]*authz.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*authz.APIKey, 0, len(s.keys))
	for _, key := range s.keys {
		keyCopy := *key
		result = append(result, &keyCopy)
	}
	return result, nil
}

// SaveAPIKey creates or updates an API key keyed by its hash.
func (s *AuthStore) SaveAPIKey(ctx context.Context, key *authz.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyCopy := *key
	s.keys[key.Key] = &keyCopy
	return nil
}

// AddIdentity adds an identity (for seeding and tests).
func (s *AuthStore) AddIdentity(identity *authz.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.ID] = copyIdentity(identity)
}

// RemoveKey removes an API key by its stored hash.
func (s *AuthStore) RemoveKey(keyHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, keyHash)
}

// copyIdentity deep-copies an identity so callers cannot mutate stored state.
func copyIdentity(identity *authz.Identity) *authz.Identity {
	identityCopy := *identity
	identityCopy.Capabilities = make([]authz.Capability, len(identity.Capabilities))
	copy(identityCopy.Capabilities, identity.Capabilities)
	return &identityCopy
}

// Compile-time interface verification.
var _ authz.AuthStore = (*AuthStore)(nil)
