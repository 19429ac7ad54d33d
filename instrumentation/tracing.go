package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys
//
// SECURITY WARNING: Never put authorization codes, access tokens, refresh tokens
// or the client secret into spans. Record presence flags or fingerprints instead.
const (
	// OAuth flow attributes
	AttrClientID       = "oauth.client_id"
	AttrGrantType      = "oauth.grant_type"
	AttrFlowState      = "oauth.flow.state"
	AttrCallbackResult = "oauth.callback.result"
	AttrOperationID    = "oauth.operation.id"
	AttrRefreshable    = "oauth.token.refreshable"    //nolint:gosec // presence flag, not a credential
	AttrRefreshRotated = "oauth.token.refresh_rotated" //nolint:gosec // presence flag, not a credential
	AttrExpiresIn      = "oauth.expires_in"
	AttrError          = "oauth.error"

	// Storage attributes
	AttrStorageOperation = "storage.operation"
	AttrStorageType      = "storage.type"

	// HTTP attributes
	AttrHTTPEndpoint   = "http.endpoint"
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddGrantAttributes adds the client and grant type of a token request
func AddGrantAttributes(span trace.Span, clientID, grantType string) {
	SetSpanAttributes(span,
		attribute.String(AttrClientID, clientID),
		attribute.String(AttrGrantType, grantType),
	)
}

// AddStorageAttributes adds storage operation attributes to a span (nil-safe)
func AddStorageAttributes(span trace.Span, operation, storageType string) {
	SetSpanAttributes(span,
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageType, storageType),
	)
}

// AddHTTPAttributes adds HTTP request attributes to a span (nil-safe)
func AddHTTPAttributes(span trace.Span, method, endpoint string, statusCode int) {
	SetSpanAttributes(span,
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPEndpoint, endpoint),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	)
}
