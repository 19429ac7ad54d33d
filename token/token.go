// Package token implements the access token value object issued by an OAuth 2.0
// token endpoint during the authorization code flow.
//
// An AccessToken is immutable after construction. Refreshing a token produces a
// new AccessToken; the previous value stays valid for anyone still holding it.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Field names of a token endpoint response (RFC 6749 Section 5.1).
const (
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldExpiresIn    = "expires_in"
	FieldTokenType    = "token_type"
	FieldScope        = "scope"
)

// MaxLifetime caps expires_in. Longer lifetimes are treated as this long,
// which keeps the expiry instant representable.
const MaxLifetime = 100 * 365 * 24 * time.Hour

// DefaultTokenType is assumed when the token endpoint omits token_type.
const DefaultTokenType = "Bearer"

// ErrMalformedResponse is returned when a token response lacks a usable access_token
// or carries fields of the wrong type.
var ErrMalformedResponse = errors.New("malformed token response")

// AccessToken is an issued access token together with its optional refresh token
// and the absolute instant it expires at.
type AccessToken struct {
	accessToken  string
	refreshToken string
	// zero means the server did not state a lifetime
	expiresAt time.Time
	tokenType string
	scope     string
}

// New constructs an AccessToken from a decoded token endpoint response.
// The expiry instant is fixed at construction time as now + expires_in.
func New(response map[string]any) (*AccessToken, error) {
	return NewAt(response, time.Now())
}

// NewAt is New with an explicit construction instant.
func NewAt(response map[string]any, now time.Time) (*AccessToken, error) {
	fields, err := parseFields(response)
	if err != nil {
		return nil, err
	}

	t := &AccessToken{
		accessToken:  fields.accessToken,
		refreshToken: fields.refreshToken,
		tokenType:    fields.tokenType,
		scope:        fields.scope,
	}
	if fields.hasExpiresIn {
		t.expiresAt = expiryFrom(now, fields.expiresIn)
	}
	return t, nil
}

// Refresh returns the token state resulting from a refresh response.
// The refresh token is carried forward unless the response supplies a new one.
// The receiver is not modified.
func (t *AccessToken) Refresh(response map[string]any) (*AccessToken, error) {
	return t.RefreshAt(response, time.Now())
}

// RefreshAt is Refresh with an explicit construction instant.
func (t *AccessToken) RefreshAt(response map[string]any, now time.Time) (*AccessToken, error) {
	next, err := NewAt(response, now)
	if err != nil {
		return nil, err
	}
	if next.refreshToken == "" {
		next.refreshToken = t.refreshToken
	}
	if next.scope == "" {
		next.scope = t.scope
	}
	return next, nil
}

// AccessToken returns the bearer credential.
func (t *AccessToken) AccessToken() string { return t.accessToken }

// RefreshToken returns the refresh token, or "" when none was issued.
func (t *AccessToken) RefreshToken() string { return t.refreshToken }

// ExpiresAt returns the expiry instant and whether one is known.
func (t *AccessToken) ExpiresAt() (time.Time, bool) {
	return t.expiresAt, !t.expiresAt.IsZero()
}

// TokenType returns the token type, defaulting to Bearer.
func (t *AccessToken) TokenType() string {
	if t.tokenType == "" {
		return DefaultTokenType
	}
	return t.tokenType
}

// Scope returns the granted scope string, if the server reported one.
func (t *AccessToken) Scope() string { return t.scope }

// HasExpired reports whether the token is past its expiry instant.
// A token without a known expiry never expires.
func (t *AccessToken) HasExpired() bool {
	return t.HasExpiredAt(time.Now())
}

// HasExpiredAt reports whether the token is expired at now.
// An expiry instant equal to now counts as expired.
func (t *AccessToken) HasExpiredAt(now time.Time) bool {
	if t.expiresAt.IsZero() {
		return false
	}
	return !t.expiresAt.After(now)
}

// CanRefresh reports whether the token carries a refresh token.
func (t *AccessToken) CanRefresh() bool {
	return t.refreshToken != ""
}

// Equal reports whether both tokens hold the same credentials and expiry.
func (t *AccessToken) Equal(o *AccessToken) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.accessToken == o.accessToken &&
		t.refreshToken == o.refreshToken &&
		t.expiresAt.Equal(o.expiresAt) &&
		t.tokenType == o.tokenType &&
		t.scope == o.scope
}

// OAuth2Token converts the token for use with golang.org/x/oauth2 transports.
func (t *AccessToken) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.accessToken,
		TokenType:    t.TokenType(),
		RefreshToken: t.refreshToken,
		Expiry:       t.expiresAt,
	}
}

// FromOAuth2Token converts an oauth2.Token, keeping its absolute expiry.
func FromOAuth2Token(ot *oauth2.Token) (*AccessToken, error) {
	if ot == nil || ot.AccessToken == "" {
		return nil, fmt.Errorf("%w: access_token is missing", ErrMalformedResponse)
	}
	t := &AccessToken{
		accessToken:  ot.AccessToken,
		refreshToken: ot.RefreshToken,
		tokenType:    ot.TokenType,
	}
	if !ot.Expiry.IsZero() {
		t.expiresAt = ot.Expiry.Round(0)
	}
	if scope, ok := ot.Extra(FieldScope).(string); ok {
		t.scope = scope
	}
	return t, nil
}

// String never includes credential material.
func (t *AccessToken) String() string {
	if exp, ok := t.ExpiresAt(); ok {
		return fmt.Sprintf("AccessToken{type=%s, refreshable=%t, expires_at=%s}", t.TokenType(), t.CanRefresh(), exp.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("AccessToken{type=%s, refreshable=%t}", t.TokenType(), t.CanRefresh())
}

type responseFields struct {
	accessToken  string
	refreshToken string
	tokenType    string
	scope        string
	expiresIn    float64
	hasExpiresIn bool
}

func parseFields(response map[string]any) (*responseFields, error) {
	if response == nil {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	f := &responseFields{}

	access, err := optionalString(response, FieldAccessToken)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, fmt.Errorf("%w: access_token is missing", ErrMalformedResponse)
	}
	f.accessToken = access

	if f.refreshToken, err = optionalString(response, FieldRefreshToken); err != nil {
		return nil, err
	}
	if f.tokenType, err = optionalString(response, FieldTokenType); err != nil {
		return nil, err
	}
	if f.scope, err = optionalString(response, FieldScope); err != nil {
		return nil, err
	}

	if raw, ok := response[FieldExpiresIn]; ok && raw != nil {
		secs, err := seconds(raw)
		if err != nil {
			return nil, err
		}
		f.expiresIn = secs
		f.hasExpiresIn = true
	}

	return f, nil
}

func optionalString(response map[string]any, key string) (string, error) {
	raw, ok := response[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrMalformedResponse, key, raw)
	}
	return s, nil
}

// seconds accepts the numeric shapes produced by encoding/json, form decoding
// and hand-built maps.
func seconds(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: expires_in is not a number: %q", ErrMalformedResponse, v.String())
		}
		return f, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, fmt.Errorf("%w: expires_in is empty", ErrMalformedResponse)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: expires_in is not a number: %q", ErrMalformedResponse, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: expires_in has unsupported type %T", ErrMalformedResponse, raw)
	}
}

// expiryFrom strips the monotonic reading so expiry is always a wall-clock
// comparison, including after a serialization round trip.
func expiryFrom(now time.Time, secs float64) time.Time {
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		secs = 0
	}
	limit := MaxLifetime.Seconds()
	switch {
	case secs > limit:
		secs = limit
	case secs < -limit:
		secs = -limit
	}
	d := time.Duration(secs * float64(time.Second))
	return now.Add(d).Round(0)
}
