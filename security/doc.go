// Package security holds the client-side safeguards of the authorization
// flow.
//
// # State
//
// StateIssuer mints the opaque state value sent with every authorization
// request and redeems it exactly once when the redirect comes back. A state
// that was never issued, or was already redeemed, is rejected.
//
// # Token encryption
//
// Encryptor seals tokens with AES-256-GCM before a store writes them. Keys
// come from GenerateKey, KeyFromBase64 or KeyFromPassphrase (HKDF-SHA256). A
// zero-value Encryptor passes data through unchanged, so stores can call it
// unconditionally.
//
//	key, err := security.KeyFromPassphrase(os.Getenv("OAUTH_STORE_PASSPHRASE"), clientID)
//	enc, err := security.NewEncryptor(key)
//
// # Audit logging
//
// Auditor writes flow events to a slog.Logger. Codes and tokens are never
// logged; Fingerprint reduces them to a short hash so related entries can be
// correlated.
//
// # Callback page
//
// SetCallbackPageHeaders hardens the page served by the loopback redirect
// listener.
package security
