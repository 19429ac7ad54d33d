// Package github provides the GitHub OAuth App preset.
//
// GitHub OAuth Apps issue access tokens that never expire and carry no
// refresh token, so a client using this preset stays Authorized without ever
// refreshing. The token endpoint answers form-encoded unless asked for JSON;
// both are accepted.
package github

import (
	oauthgithub "golang.org/x/oauth2/github"

	"github.com/giantswarm/oauth-client/providers"
)

// Name is the preset name.
const Name = "github"

// DefaultScopes are requested when the configuration names none.
var DefaultScopes = []string{"read:user", "user:email"}

// Preset returns the GitHub endpoints.
func Preset() providers.Preset {
	return providers.Preset{
		Name:          Name,
		Endpoints:     providers.FromOAuth2(oauthgithub.Endpoint),
		DefaultScopes: DefaultScopes,
	}
}
