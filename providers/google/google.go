// Package google provides the Google OAuth 2.0 preset.
package google

import (
	"golang.org/x/oauth2/google"

	"github.com/giantswarm/oauth-client/providers"
)

// Name is the preset name.
const Name = "google"

// DefaultScopes are requested when the configuration names none.
var DefaultScopes = []string{"openid", "email", "profile"}

// Preset returns the Google endpoints. Google only issues a refresh token
// for access_type=offline, and only on first consent unless prompt=consent
// forces it again.
func Preset() providers.Preset {
	return providers.Preset{
		Name:          Name,
		Endpoints:     providers.FromOAuth2(google.Endpoint),
		DefaultScopes: DefaultScopes,
		AuthParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
		Refreshable: true,
	}
}
