package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giantswarm/oauth-client/instrumentation"
	"github.com/giantswarm/oauth-client/security"
	"github.com/giantswarm/oauth-client/token"
)

// ErrNotFound is returned by Load when no token is stored under the key.
var ErrNotFound = errors.New("token not found")

// TokenStore defines the interface for storing and retrieving tokens.
// All methods accept context.Context for tracing and cancellation.
type TokenStore interface {
	// Save stores tok under key, replacing any previous value
	Save(ctx context.Context, key string, tok *token.AccessToken) error

	// Load returns the token stored under key, or ErrNotFound
	Load(ctx context.Context, key string) (*token.AccessToken, error)

	// Delete removes the token stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Codec converts tokens to and from their stored bytes.
type Codec struct {
	// Format defaults to token.FormatJSON
	Format token.Format

	// Encryptor seals the serialized token when enabled
	Encryptor *security.Encryptor
}

// Encode serializes and, if configured, encrypts tok.
func (c Codec) Encode(tok *token.AccessToken) ([]byte, error) {
	if tok == nil {
		return nil, fmt.Errorf("token cannot be nil")
	}
	data, err := token.Marshal(tok, c.format())
	if err != nil {
		return nil, err
	}
	if c.Encryptor.IsEnabled() {
		sealed, err := c.Encryptor.Seal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt token: %w", err)
		}
		return sealed, nil
	}
	return data, nil
}

// Decode reverses Encode.
func (c Codec) Decode(data []byte) (*token.AccessToken, error) {
	if c.Encryptor.IsEnabled() {
		opened, err := c.Encryptor.Open(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt token: %w", err)
		}
		data = opened
	}
	return token.Unmarshal(data, c.format())
}

func (c Codec) format() token.Format {
	if c.Format == "" {
		return token.FormatJSON
	}
	return c.Format
}

// Instrumented wraps a TokenStore with spans and storage metrics.
type Instrumented struct {
	next        TokenStore
	storageType string
	inst        *instrumentation.Instrumentation
}

// Instrument wraps store. storageType labels spans and metrics, e.g. "file".
func Instrument(store TokenStore, storageType string, inst *instrumentation.Instrumentation) *Instrumented {
	if inst == nil {
		inst = instrumentation.Noop()
	}
	return &Instrumented{next: store, storageType: storageType, inst: inst}
}

// Save implements TokenStore.
func (s *Instrumented) Save(ctx context.Context, key string, tok *token.AccessToken) error {
	return s.observe(ctx, "save", func(ctx context.Context) error {
		return s.next.Save(ctx, key, tok)
	})
}

// Load implements TokenStore.
func (s *Instrumented) Load(ctx context.Context, key string) (*token.AccessToken, error) {
	var tok *token.AccessToken
	err := s.observe(ctx, "load", func(ctx context.Context) error {
		var err error
		tok, err = s.next.Load(ctx, key)
		return err
	})
	return tok, err
}

// Delete implements TokenStore.
func (s *Instrumented) Delete(ctx context.Context, key string) error {
	return s.observe(ctx, "delete", func(ctx context.Context) error {
		return s.next.Delete(ctx, key)
	})
}

func (s *Instrumented) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.inst.Tracer("storage").Start(ctx, "storage."+op)
	defer span.End()
	instrumentation.AddStorageAttributes(span, op, s.storageType)

	start := time.Now()
	err := fn(ctx)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	result := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
		instrumentation.SetSpanSuccess(span)
	case err != nil:
		result = "error"
		instrumentation.RecordError(span, err)
	default:
		instrumentation.SetSpanSuccess(span)
	}
	s.inst.Metrics().RecordStorageOperation(ctx, op, s.storageType, result, elapsed)
	return err
}
