package oauth

import (
	"fmt"
	"net/url"
	"sort"

	"golang.org/x/oauth2"
)

// Authorization request parameter names
const (
	ParamResponseType = "response_type"
	ParamClientID     = "client_id"
	ParamRedirectURI  = "redirect_uri"
	ParamState        = "state"
	ParamScope        = "scope"
	ParamCode         = "code"
	ParamError        = "error"
	ParamErrorDesc    = "error_description"
	ParamErrorURI     = "error_uri"
)

// reservedParams can never be set through extra parameters.
var reservedParams = map[string]bool{
	ParamResponseType: true,
	ParamClientID:     true,
	ParamRedirectURI:  true,
}

// BuildAuthorizationURL returns the authorization endpoint URL carrying
// response_type=code, client_id, redirect_uri and the configured scopes, plus
// extra. Extra keys response_type, client_id and redirect_uri are ignored.
func BuildAuthorizationURL(cfg *Config, extra map[string]string) (*url.URL, error) {
	return buildAuthorizationURL(cfg, "", extra)
}

// buildAuthorizationURL is BuildAuthorizationURL with a client-issued state.
// When state is set, a state in extra is ignored too.
func buildAuthorizationURL(cfg *Config, state string, extra map[string]string) (*url.URL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.AuthorizationURL == "" {
		return nil, fmt.Errorf("authorization URL is not configured")
	}

	oc := oauth2Config(cfg)

	// sorted so the resulting URL is deterministic
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if reservedParams[k] || (state != "" && k == ParamState) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	opts := make([]oauth2.AuthCodeOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, oauth2.SetAuthURLParam(k, extra[k]))
	}

	u, err := url.Parse(oc.AuthCodeURL(state, opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to build authorization URL: %w", err)
	}
	return u, nil
}

// oauth2Config maps Config onto the x/oauth2 client configuration.
func oauth2Config(cfg *Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthorizationURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
