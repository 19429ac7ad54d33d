// Package valkey provides a Valkey storage backend for client tokens.
//
// Valkey is wire-compatible with Redis. Sharing tokens through it lets
// several processes running as the same OAuth client reuse one authorization
// and refresh it in turn.
//
// # Key Schema
//
// All keys use a configurable prefix (default "oauth-client:"):
//
//	{prefix}token:{key} -> Codec(AccessToken)
//
// Values are JSON or CBOR, sealed with AES-256-GCM when an Encryptor is set.
// Entries carry no TTL by default: the refresh token usually outlives the
// access token's expires_in, so expiry would throw away a usable credential.
//
// # Usage
//
//	store, err := valkey.New(valkey.Config{Address: "localhost:6379"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
// # Testing
//
// Tests connect to VALKEY_TEST_ADDR (default localhost:6379) and are skipped
// when no server answers.
package valkey
