// Package file provides a TokenStore keeping one file per key in a directory.
//
// Files are written with mode 0600 through a temporary file and a rename, so
// a reader never sees a partially written token.
package file

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/giantswarm/oauth-client/security"
	"github.com/giantswarm/oauth-client/storage"
	"github.com/giantswarm/oauth-client/token"
)

// Config holds configuration for the file storage backend.
type Config struct {
	// Dir is where token files are written (required). Created with 0700 if missing.
	Dir string

	// Format of the stored token. Defaults to token.FormatJSON.
	Format token.Format

	// Encryptor seals token files when enabled.
	Encryptor *security.Encryptor

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store is a filesystem TokenStore.
type Store struct {
	dir    string
	codec  storage.Codec
	logger *slog.Logger
}

var _ storage.TokenStore = (*Store)(nil)

// New creates the directory if needed and returns a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("token directory is required")
	}
	if cfg.Format != "" && cfg.Format != token.FormatJSON && cfg.Format != token.FormatCBOR {
		return nil, fmt.Errorf("unsupported token format %q", cfg.Format)
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating token directory: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		dir:    cfg.Dir,
		codec:  storage.Codec{Format: cfg.Format, Encryptor: cfg.Encryptor},
		logger: logger,
	}, nil
}

// Path returns the file a key is stored in.
func (s *Store) Path(key string) string {
	ext := ".json"
	if s.codec.Format == token.FormatCBOR {
		ext = ".cbor"
	}
	if s.codec.Encryptor.IsEnabled() {
		ext += ".enc"
	}
	// hex keeps arbitrary client IDs filesystem safe
	return filepath.Join(s.dir, hex.EncodeToString([]byte(key))+ext)
}

// Save implements storage.TokenStore.
func (s *Store) Save(_ context.Context, key string, tok *token.AccessToken) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	data, err := s.codec.Encode(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".token-*")
	if err != nil {
		return fmt.Errorf("creating temporary token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting token file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}

	s.logger.Debug("Saved token", "path", s.Path(key))
	return nil
}

// Load implements storage.TokenStore.
func (s *Store) Load(_ context.Context, key string) (*token.AccessToken, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	tok, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return tok, nil
}

// Delete implements storage.TokenStore.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
