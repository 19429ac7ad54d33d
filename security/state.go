package security

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/nonceutil"
)

// ErrUnknownState is returned when a redirect carries a state value that was
// never issued, has expired, or was already redeemed.
var ErrUnknownState = errors.New("unknown or already used state")

// StateIssuer hands out one-time OAuth state values and redeems them when the
// redirect comes back. Safe for concurrent use.
type StateIssuer struct {
	nonces nonceutil.NonceService
}

// NewStateIssuer creates an initialized issuer.
func NewStateIssuer() (*StateIssuer, error) {
	ns := nonceutil.NewNonceService()
	if err := ns.Initialize(); err != nil {
		return nil, fmt.Errorf("could not initialize nonce service: %w", err)
	}
	return &StateIssuer{nonces: ns}, nil
}

// Issue returns a fresh state value.
func (s *StateIssuer) Issue() (string, error) {
	state, _, err := s.nonces.Get()
	if err != nil {
		return "", fmt.Errorf("failed to issue state: %w", err)
	}
	return state, nil
}

// Redeem consumes a state value. A value can be redeemed only once.
func (s *StateIssuer) Redeem(state string) error {
	if state == "" {
		return fmt.Errorf("%w: state is missing", ErrUnknownState)
	}
	if !s.nonces.Redeem(state) {
		return ErrUnknownState
	}
	return nil
}
