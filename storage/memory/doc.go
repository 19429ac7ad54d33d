// Package memory provides an in-memory TokenStore.
//
// Tokens are kept in their serialized form, so a Store with an Encryptor holds
// only ciphertext. Nothing survives the process; use storage/file or
// storage/valkey when the token must outlive it.
//
// Example usage:
//
//	store := memory.New()
//	client, _ := oauth.NewClient(cfg, sink, oauth.WithStore(store, cfg.ClientID))
package memory
