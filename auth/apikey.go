package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultAPIKeyHeader carries operator API keys.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// HeaderName is the header containing the API key.
	// Default: "X-API-Key"
	HeaderName string

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// KeyInfo describes a registered API key. Only its hash is stored.
type KeyInfo struct {
	// ID is a unique identifier for this key.
	ID string

	// KeyHash is the SHA-256 hex digest of the key.
	KeyHash string

	// Principal is the identity associated with this key.
	Principal string

	// Roles are the roles granted to this key.
	Roles []string

	// ExpiresAt is when this key expires (zero = never).
	ExpiresAt time.Time
}

// KeyStore looks up API keys by hash.
type KeyStore interface {
	// Lookup returns the key with the given hash, or nil if none matches.
	Lookup(ctx context.Context, keyHash string) (*KeyInfo, error)
}

// APIKeyAuthenticator validates API keys.
type APIKeyAuthenticator struct {
	config APIKeyConfig
	store  KeyStore
}

// NewAPIKeyAuthenticator creates a new API key authenticator.
func NewAPIKeyAuthenticator(config APIKeyConfig, store KeyStore) *APIKeyAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = DefaultAPIKeyHeader
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &APIKeyAuthenticator{config: config, store: store}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return "api_key"
}

// Supports returns true if the request contains an API key header.
func (a *APIKeyAuthenticator) Supports(_ context.Context, req *Request) bool {
	return req.Header(a.config.HeaderName) != ""
}

// Authenticate validates the API key.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, req *Request) (*Result, error) {
	key := strings.TrimSpace(req.Header(a.config.HeaderName))
	if key == "" {
		return Failure(ErrMissingCredentials, MethodAPIKey), nil
	}

	info, err := a.store.Lookup(ctx, HashAPIKey(key))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return Failure(ErrInvalidCredentials, MethodAPIKey), nil
	}
	if !info.ExpiresAt.IsZero() && a.config.Now().After(info.ExpiresAt) {
		return Failure(ErrTokenExpired, MethodAPIKey), nil
	}

	return Success(&Identity{
		Principal: info.Principal,
		Roles:     info.Roles,
		Method:    MethodAPIKey,
		ExpiresAt: info.ExpiresAt,
		Claims:    map[string]any{"key_id": info.ID},
	}), nil
}

// HashAPIKey hashes an API key using SHA-256 for storage.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryKeyStore is an in-memory KeyStore. Lookups compare every stored
// hash in constant time.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys []*KeyInfo
}

// NewMemoryKeyStore creates an empty store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{}
}

// Lookup returns the key with the given hash.
func (s *MemoryKeyStore) Lookup(_ context.Context, keyHash string) (*KeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *KeyInfo
	for _, info := range s.keys {
		if subtle.ConstantTimeCompare([]byte(info.KeyHash), []byte(keyHash)) == 1 {
			found = info
		}
	}
	return found, nil
}

// Add stores info, replacing a key with the same ID.
func (s *MemoryKeyStore) Add(info *KeyInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.keys {
		if existing.ID == info.ID {
			s.keys[i] = info
			return
		}
	}
	s.keys = append(s.keys, info)
}

// AddKey hashes a plaintext key and stores it.
func (s *MemoryKeyStore) AddKey(id, key, principal string, roles ...string) {
	s.Add(&KeyInfo{ID: id, KeyHash: HashAPIKey(key), Principal: principal, Roles: roles})
}

// Remove deletes the key with the given ID.
func (s *MemoryKeyStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = slices.DeleteFunc(s.keys, func(info *KeyInfo) bool { return info.ID == id })
}

// Len returns the number of stored keys.
func (s *MemoryKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ KeyStore      = (*MemoryKeyStore)(nil)
)
