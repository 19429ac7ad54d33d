// Package dex provides a preset for Dex (https://dexidp.io), discovered from
// the Dex issuer URL.
//
// A configured connector_id is sent with every authorization request and
// skips the Dex connector selection screen. Dex rotates refresh tokens; the
// client always keeps the most recent one.
package dex

import (
	"context"
	"fmt"

	"github.com/giantswarm/oauth-client/providers"
	"github.com/giantswarm/oauth-client/providers/oidc"
)

// Name is the preset name.
const Name = "dex"

// ParamConnectorID is the Dex-specific authorization parameter.
const ParamConnectorID = "connector_id"

// DefaultScopes include offline_access, without which Dex issues no refresh
// token, and groups.
var DefaultScopes = []string{"openid", "profile", "email", "groups", "offline_access"}

// Config holds Dex preset options.
type Config struct {
	// IssuerURL is the Dex issuer, e.g. https://dex.example.com.
	IssuerURL string

	// ConnectorID optionally selects the upstream connector, e.g. "github".
	ConnectorID string
}

// Preset discovers the Dex endpoints with dc.
func Preset(ctx context.Context, dc *oidc.DiscoveryClient, cfg Config) (providers.Preset, error) {
	if cfg.IssuerURL == "" {
		return providers.Preset{}, fmt.Errorf("dex issuer URL is required")
	}
	if err := oidc.ValidateConnectorID(cfg.ConnectorID); err != nil {
		return providers.Preset{}, fmt.Errorf("invalid connector ID: %w", err)
	}

	doc, err := dc.Discover(ctx, cfg.IssuerURL)
	if err != nil {
		return providers.Preset{}, fmt.Errorf("dex discovery failed: %w", err)
	}

	p := providers.Preset{
		Name:          Name,
		Endpoints:     doc.Endpoints(),
		DefaultScopes: DefaultScopes,
		Refreshable:   true,
	}
	if cfg.ConnectorID != "" {
		p.AuthParams = map[string]string{ParamConnectorID: cfg.ConnectorID}
	}
	return p, nil
}
