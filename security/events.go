package security

// Audit event types emitted by the client.
const (
	// Authorization flow events

	// EventAuthorizationStarted is logged when an authorization URL is issued
	EventAuthorizationStarted = "authorization_started"

	// EventAuthorizationCodeReceived is logged when a redirect carrying a code is intercepted
	EventAuthorizationCodeReceived = "authorization_code_received"

	// EventAuthorizationCancelled is logged when the user cancels at the provider
	EventAuthorizationCancelled = "authorization_cancelled"

	// EventInvalidCallback is logged when a redirect is neither a code nor a cancellation
	EventInvalidCallback = "invalid_callback"

	// EventStateMismatch is logged when the state parameter of a redirect is unknown or reused
	EventStateMismatch = "state_mismatch"

	// Token lifecycle events

	// EventTokenIssued is logged when an authorization code is exchanged for a token
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged when a token is refreshed
	EventTokenRefreshed = "token_refreshed"

	// EventTokenRestored is logged when a persisted token is loaded
	EventTokenRestored = "token_restored"

	// EventCodeExchangeFailed is logged when the token endpoint rejects a code
	EventCodeExchangeFailed = "code_exchange_failed"

	// EventRefreshFailed is logged when a refresh attempt fails
	EventRefreshFailed = "refresh_failed"
)
