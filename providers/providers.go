// Package providers holds endpoint presets for well-known authorization
// servers.
//
// Presets only fill in endpoints, default scopes and the extra
// authorization parameters a provider needs. Credentials and the redirect
// URL always come from the application:
//
//	cfg := &oauth.Config{ClientID: id, ClientSecret: secret, RedirectURL: "http://127.0.0.1:8085/callback"}
//	google.Preset().Apply(cfg)
//
// Subpackages:
//   - providers/google: Google OAuth 2.0
//   - providers/github: GitHub OAuth Apps
//   - providers/dex: Dex, discovered from its issuer URL
//   - providers/oidc: generic OpenID Connect discovery
package providers

import (
	"fmt"
	"net/url"

	"golang.org/x/oauth2"

	oauth "github.com/giantswarm/oauth-client"
)

// Endpoints are the two endpoints of an authorization server.
type Endpoints struct {
	AuthorizationURL string
	TokenURL         string
}

// FromOAuth2 converts an x/oauth2 endpoint.
func FromOAuth2(e oauth2.Endpoint) Endpoints {
	return Endpoints{AuthorizationURL: e.AuthURL, TokenURL: e.TokenURL}
}

// Validate checks that both endpoints are absolute HTTPS URLs.
func (e Endpoints) Validate() error {
	for _, ep := range []struct{ name, value string }{
		{"authorization URL", e.AuthorizationURL},
		{"token URL", e.TokenURL},
	} {
		u, err := url.Parse(ep.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", ep.name, err)
		}
		if u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute https URL, got %q", ep.name, ep.value)
		}
	}
	return nil
}

// Preset describes a provider.
type Preset struct {
	// Name identifies the provider, e.g. "google".
	Name string

	Endpoints Endpoints

	// DefaultScopes are used when the configuration names no scopes.
	DefaultScopes []string

	// AuthParams are extra authorization request parameters the provider
	// needs, e.g. to be issued a refresh token.
	AuthParams map[string]string

	// Refreshable reports whether the provider issues refresh tokens.
	Refreshable bool
}

// Apply sets the endpoints on cfg, and the default scopes when cfg has none.
func (p Preset) Apply(cfg *oauth.Config) {
	cfg.AuthorizationURL = p.Endpoints.AuthorizationURL
	cfg.TokenURL = p.Endpoints.TokenURL
	if len(cfg.Scopes) == 0 && len(p.DefaultScopes) > 0 {
		cfg.Scopes = append([]string(nil), p.DefaultScopes...)
	}
}

// ExtraParams returns a copy of AuthParams merged with extra. Keys in extra win.
func (p Preset) ExtraParams(extra map[string]string) map[string]string {
	out := make(map[string]string, len(p.AuthParams)+len(extra))
	for k, v := range p.AuthParams {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
