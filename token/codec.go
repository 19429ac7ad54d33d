package token

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// serializedToken is the durable JSON form of an AccessToken.
type serializedToken struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	Scope        string     `json:"scope,omitempty"`
}

// compactToken is the durable CBOR form. Expiry is kept as Unix seconds plus
// a nanosecond remainder because the default CBOR time encoding drops
// sub-second precision and UnixNano ends in 2262.
type compactToken struct {
	AccessToken  string `cbor:"1,keyasint"`
	RefreshToken string `cbor:"2,keyasint,omitempty"`
	ExpiresAt    *int64 `cbor:"3,keyasint,omitempty"`
	TokenType    string `cbor:"4,keyasint,omitempty"`
	Scope        string `cbor:"5,keyasint,omitempty"`
	ExpiresNanos int64  `cbor:"6,keyasint,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t *AccessToken) MarshalJSON() ([]byte, error) {
	st := serializedToken{
		AccessToken:  t.accessToken,
		RefreshToken: t.refreshToken,
		TokenType:    t.tokenType,
		Scope:        t.scope,
	}
	if !t.expiresAt.IsZero() {
		exp := t.expiresAt.UTC()
		st.ExpiresAt = &exp
	}
	return json.Marshal(st)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *AccessToken) UnmarshalJSON(data []byte) error {
	var st serializedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to unmarshal token: %w", err)
	}
	if st.AccessToken == "" {
		return fmt.Errorf("%w: access_token is missing", ErrMalformedResponse)
	}

	*t = AccessToken{
		accessToken:  st.AccessToken,
		refreshToken: st.RefreshToken,
		tokenType:    st.TokenType,
		scope:        st.Scope,
	}
	if st.ExpiresAt != nil {
		t.expiresAt = *st.ExpiresAt
	}
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (t *AccessToken) MarshalCBOR() ([]byte, error) {
	ct := compactToken{
		AccessToken:  t.accessToken,
		RefreshToken: t.refreshToken,
		TokenType:    t.tokenType,
		Scope:        t.scope,
	}
	if !t.expiresAt.IsZero() {
		secs := t.expiresAt.Unix()
		ct.ExpiresAt = &secs
		ct.ExpiresNanos = int64(t.expiresAt.Nanosecond())
	}
	return cbor.Marshal(ct)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (t *AccessToken) UnmarshalCBOR(data []byte) error {
	var ct compactToken
	if err := cbor.Unmarshal(data, &ct); err != nil {
		return fmt.Errorf("failed to unmarshal token: %w", err)
	}
	if ct.AccessToken == "" {
		return fmt.Errorf("%w: access_token is missing", ErrMalformedResponse)
	}

	*t = AccessToken{
		accessToken:  ct.AccessToken,
		refreshToken: ct.RefreshToken,
		tokenType:    ct.TokenType,
		scope:        ct.Scope,
	}
	if ct.ExpiresAt != nil {
		if ct.ExpiresNanos < 0 || ct.ExpiresNanos >= int64(time.Second) {
			return fmt.Errorf("%w: expiry nanoseconds out of range", ErrMalformedResponse)
		}
		t.expiresAt = time.Unix(*ct.ExpiresAt, ct.ExpiresNanos).UTC()
	}
	return nil
}

// Format selects a serialization of AccessToken.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// Marshal serializes t in the given format.
func Marshal(t *AccessToken, format Format) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("token cannot be nil")
	}
	switch format {
	case FormatJSON, "":
		return t.MarshalJSON()
	case FormatCBOR:
		return t.MarshalCBOR()
	default:
		return nil, fmt.Errorf("unsupported token format %q", format)
	}
}

// Unmarshal reconstructs a token serialized with Marshal.
func Unmarshal(data []byte, format Format) (*AccessToken, error) {
	t := &AccessToken{}
	var err error
	switch format {
	case FormatJSON, "":
		err = t.UnmarshalJSON(data)
	case FormatCBOR:
		err = t.UnmarshalCBOR(data)
	default:
		err = fmt.Errorf("unsupported token format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
