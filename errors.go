package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/giantswarm/oauth-client/token"
)

// OAuth error codes a token endpoint or an authorization redirect may carry
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeUnauthorizedClient   = "unauthorized_client"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeServerError          = "server_error"
	ErrorCodeTemporarilyUnavail   = "temporarily_unavailable"
	ErrorCodeAccessDenied         = "access_denied"
)

// Error kinds, matched with errors.Is. A token response that is missing its
// access_token matches both ErrMalformedResponse and the kind of the failed step.
var (
	// ErrMalformedResponse means the token endpoint body lacked required fields.
	ErrMalformedResponse = token.ErrMalformedResponse

	// ErrTokenExchangeFailed means the code-for-token request failed.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrRefreshFailed means the refresh request failed or no refresh token was available.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrInvalidCallback means a redirect matched but carried neither a code nor a cancellation.
	ErrInvalidCallback = errors.New("invalid callback")

	// ErrClientClosed is returned for operations on, or completions after, Close.
	ErrClientClosed = errors.New("oauth client closed")

	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrStateMismatch means the redirect's state parameter was not one we issued.
	ErrStateMismatch = errors.New("state parameter mismatch")
)

// OAuthError represents an OAuth 2.0 error response
type OAuthError struct {
	Code        string // OAuth error code (e.g., "invalid_request", "invalid_grant")
	Description string // Human-readable error description
	URI         string // Optional error_uri
	Status      int    // HTTP status code, zero for redirect errors
}

// Error implements the error interface
func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewOAuthError creates a new OAuth error
func NewOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// parseOAuthError decodes an RFC 6749 section 5.2 error body. It returns nil
// when the body carries no error code.
func parseOAuthError(body []byte, contentType string, status int) *OAuthError {
	fields, err := token.ParseResponse(body, contentType)
	if err != nil {
		// Some servers send the error object with a text/html content type.
		if jerr := json.Unmarshal(body, &fields); jerr != nil {
			return nil
		}
	}
	code, _ := fields["error"].(string)
	if code == "" {
		return nil
	}
	desc, _ := fields["error_description"].(string)
	uri, _ := fields["error_uri"].(string)
	return &OAuthError{Code: code, Description: desc, URI: uri, Status: status}
}

// FlowError is the error surfaced for a failed step of the authorization flow.
type FlowError struct {
	// Kind is one of ErrMalformedResponse, ErrTokenExchangeFailed,
	// ErrRefreshFailed or ErrInvalidCallback.
	Kind error

	// Op names the failed step, e.g. "exchange" or "refresh".
	Op string

	// Status is the token endpoint HTTP status, zero when no response arrived.
	Status int

	// Err is the underlying cause: a transport error, an *OAuthError or a parse error.
	Err error
}

func (e *FlowError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *FlowError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newFlowError(kind error, op string, status int, err error) *FlowError {
	return &FlowError{Kind: kind, Op: op, Status: status, Err: err}
}
