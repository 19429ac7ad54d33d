// Package testutil provides a controllable clock and a scripted token
// endpoint for tests of the OAuth client.
package testutil
