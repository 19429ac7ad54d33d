package valkey

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/giantswarm/oauth-client/security"
	"github.com/giantswarm/oauth-client/storage"
	"github.com/giantswarm/oauth-client/token"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys
	DefaultKeyPrefix = "oauth-client:"

	// connectionVerifyTimeout is the timeout for initial connection verification
	connectionVerifyTimeout = 5 * time.Second

	// MaxKeyLength is the maximum allowed length for store keys
	MaxKeyLength = 256

	// MaxTokenDataSize is the maximum size of serialized token data (64KB)
	MaxTokenDataSize = 64 * 1024
)

var errInputTooLarge = fmt.Errorf("input exceeds maximum allowed size")

// Config holds configuration for the Valkey storage backend.
type Config struct {
	// Address is the Valkey server address (required), e.g., "localhost:6379"
	Address string

	// Password is the optional password for Valkey authentication
	Password string

	// DB is the optional database number (default 0)
	DB int

	// KeyPrefix is the prefix for all keys (default "oauth-client:")
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections
	TLS *tls.Config

	// TTL expires stored tokens. Zero keeps them until deleted.
	TTL time.Duration

	// Format of stored tokens. Defaults to token.FormatJSON.
	Format token.Format

	// Encryptor seals stored tokens when enabled.
	Encryptor *security.Encryptor

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store is a Valkey-backed TokenStore.
type Store struct {
	client valkeygo.Client
	prefix string
	ttl    time.Duration
	codec  storage.Codec
	logger *slog.Logger
}

var _ storage.TokenStore = (*Store)(nil)

// New creates a new Valkey-backed storage instance.
// Returns an error if the connection cannot be established.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
		Password:    cfg.Password,
		TLSConfig:   cfg.TLS,
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing valkey client. Address, Password, DB and
// TLS in cfg are ignored.
func NewWithClient(client valkeygo.Client, cfg Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Using Valkey token storage",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix,
		"encrypted", cfg.Encryptor.IsEnabled())

	return &Store{
		client: client,
		prefix: prefix,
		ttl:    cfg.TTL,
		codec:  storage.Codec{Format: cfg.Format, Encryptor: cfg.Encryptor},
		logger: logger,
	}
}

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey storage connection closed")
}

// Save implements storage.TokenStore.
func (s *Store) Save(ctx context.Context, key string, tok *token.AccessToken) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := s.codec.Encode(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if len(data) > MaxTokenDataSize {
		return errInputTooLarge
	}

	set := s.client.B().Set().Key(s.tokenKey(key)).Value(valkeygo.BinaryString(data))
	var execErr error
	if s.ttl > 0 {
		execErr = s.client.Do(ctx, set.Ex(s.ttl).Build()).Error()
	} else {
		execErr = s.client.Do(ctx, set.Build()).Error()
	}
	if execErr != nil {
		return fmt.Errorf("failed to save token: %w", execErr)
	}

	s.logger.Debug("Saved token", "key", key)
	return nil
}

// Load implements storage.TokenStore.
func (s *Store) Load(ctx context.Context, key string) (*token.AccessToken, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.tokenKey(key)).Build()).AsBytes()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	tok, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return tok, nil
}

// Delete implements storage.TokenStore.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.tokenKey(key)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

func (s *Store) tokenKey(key string) string {
	return s.prefix + "token:" + key
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("key exceeds maximum length of %d", MaxKeyLength)
	}
	return nil
}

func isNilError(err error) bool {
	return valkeygo.IsValkeyNil(err)
}
