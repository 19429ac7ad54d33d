// Package transport delivers form-encoded POST requests to an OAuth2 token
// endpoint.
//
// Requests are asynchronous relative to the caller: PostForm returns a channel
// that receives exactly one Result once the round trip finishes. Any HTTP
// status is a successful delivery; interpreting non-2xx responses is the
// caller's job. Transport never retries.
package transport
