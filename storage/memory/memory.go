package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/giantswarm/oauth-client/security"
	"github.com/giantswarm/oauth-client/storage"
	"github.com/giantswarm/oauth-client/token"
)

// Store is an in-memory TokenStore. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	tokens map[string][]byte

	codec  storage.Codec
	logger *slog.Logger
}

var _ storage.TokenStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		tokens: make(map[string][]byte),
		logger: slog.Default(),
	}
}

// SetLogger sets a custom logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetEncryptor encrypts tokens held from now on. Existing entries must be
// rewritten by the caller.
func (s *Store) SetEncryptor(enc *security.Encryptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codec.Encryptor = enc
	if enc.IsEnabled() {
		s.logger.Info("Token encryption at rest enabled for memory storage")
	}
}

// Save implements storage.TokenStore.
func (s *Store) Save(_ context.Context, key string, tok *token.AccessToken) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.codec.Encode(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	s.tokens[key] = data
	s.logger.Debug("Saved token", "key", key)
	return nil
}

// Load implements storage.TokenStore.
func (s *Store) Load(_ context.Context, key string) (*token.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.tokens[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	tok, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return tok, nil
}

// Delete implements storage.TokenStore.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, key)
	return nil
}

// Len returns the number of stored tokens.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
