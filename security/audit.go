// Package security provides token encryption at rest, audit logging and
// one-time state values for the authorization code flow.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging. Credentials are only ever logged
// as short SHA-256 fingerprints.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	ClientID  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event (nil-safe)
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"client_id", event.ClientID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogAuthorizationStarted logs the issuing of an authorization URL
func (a *Auditor) LogAuthorizationStarted(clientID, authorizationEndpoint string, withState bool) {
	a.LogEvent(Event{
		Type:     EventAuthorizationStarted,
		ClientID: clientID,
		Details: map[string]any{
			"authorization_endpoint": authorizationEndpoint,
			"state":                  withState,
		},
	})
}

// LogCodeReceived logs an intercepted authorization code
func (a *Auditor) LogCodeReceived(clientID, code string) {
	a.LogEvent(Event{
		Type:     EventAuthorizationCodeReceived,
		ClientID: clientID,
		Details: map[string]any{
			"code_fingerprint": Fingerprint(code),
		},
	})
}

// LogTokenIssued logs a successful code exchange
func (a *Auditor) LogTokenIssued(clientID, accessToken string, refreshable bool) {
	a.LogEvent(Event{
		Type:     EventTokenIssued,
		ClientID: clientID,
		Details: map[string]any{
			"token_fingerprint": Fingerprint(accessToken),
			"refreshable":       refreshable,
		},
	})
}

// LogTokenRefreshed logs a successful refresh
func (a *Auditor) LogTokenRefreshed(clientID, accessToken string, rotated bool) {
	a.LogEvent(Event{
		Type:     EventTokenRefreshed,
		ClientID: clientID,
		Details: map[string]any{
			"token_fingerprint": Fingerprint(accessToken),
			"refresh_rotated":   rotated,
		},
	})
}

// LogFailure logs a failed exchange, refresh or callback
func (a *Auditor) LogFailure(eventType, clientID, reason string) {
	a.LogEvent(Event{
		Type:     eventType,
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogCancelled logs a cancelled authorization
func (a *Auditor) LogCancelled(clientID string) {
	a.LogEvent(Event{
		Type:     EventAuthorizationCancelled,
		ClientID: clientID,
	})
}

// Fingerprint returns a short SHA-256 prefix of a credential, for log correlation.
func Fingerprint(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
