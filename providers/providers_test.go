package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"

	oauth "github.com/giantswarm/oauth-client"
)

func TestPreset_Apply(t *testing.T) {
	p := Preset{
		Name: "test",
		Endpoints: Endpoints{
			AuthorizationURL: "https://idp.example.com/auth",
			TokenURL:         "https://idp.example.com/token",
		},
		DefaultScopes: []string{"openid"},
	}

	t.Run("fills endpoints and default scopes", func(t *testing.T) {
		cfg := &oauth.Config{ClientID: "id1"}
		p.Apply(cfg)
		assert.Equal(t, "https://idp.example.com/auth", cfg.AuthorizationURL)
		assert.Equal(t, "https://idp.example.com/token", cfg.TokenURL)
		assert.Equal(t, []string{"openid"}, cfg.Scopes)
		assert.Equal(t, "id1", cfg.ClientID)

		cfg.Scopes[0] = "changed"
		assert.Equal(t, "openid", p.DefaultScopes[0], "preset scopes are copied")
	})

	t.Run("keeps configured scopes", func(t *testing.T) {
		cfg := &oauth.Config{Scopes: []string{"repo"}}
		p.Apply(cfg)
		assert.Equal(t, []string{"repo"}, cfg.Scopes)
	})
}

func TestPreset_ExtraParams(t *testing.T) {
	p := Preset{AuthParams: map[string]string{"prompt": "consent", "access_type": "offline"}}

	got := p.ExtraParams(map[string]string{"prompt": "none", "login_hint": "a@example.com"})
	assert.Equal(t, map[string]string{
		"prompt":      "none",
		"access_type": "offline",
		"login_hint":  "a@example.com",
	}, got)
	assert.Equal(t, "consent", p.AuthParams["prompt"], "preset is not modified")

	assert.Empty(t, Preset{}.ExtraParams(nil))
}

func TestEndpoints_Validate(t *testing.T) {
	tests := []struct {
		name    string
		e       Endpoints
		wantErr bool
	}{
		{
			name: "https endpoints",
			e:    FromOAuth2(oauth2.Endpoint{AuthURL: "https://a.example.com/auth", TokenURL: "https://a.example.com/token"}),
		},
		{
			name:    "http token endpoint",
			e:       Endpoints{AuthorizationURL: "https://a.example.com/auth", TokenURL: "http://a.example.com/token"},
			wantErr: true,
		},
		{
			name:    "missing authorization endpoint",
			e:       Endpoints{TokenURL: "https://a.example.com/token"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.e.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
