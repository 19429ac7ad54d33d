package google

import (
	"testing"

	oauth "github.com/giantswarm/oauth-client"
)

func TestPreset(t *testing.T) {
	p := Preset()

	if err := p.Endpoints.Validate(); err != nil {
		t.Fatalf("Endpoints.Validate() error = %v", err)
	}
	if p.Endpoints.AuthorizationURL != "https://accounts.google.com/o/oauth2/auth" {
		t.Errorf("AuthorizationURL = %q", p.Endpoints.AuthorizationURL)
	}
	if p.Endpoints.TokenURL != "https://oauth2.googleapis.com/token" {
		t.Errorf("TokenURL = %q", p.Endpoints.TokenURL)
	}
	if !p.Refreshable {
		t.Error("google issues refresh tokens")
	}
	if p.AuthParams["access_type"] != "offline" {
		t.Errorf("access_type = %q, want offline", p.AuthParams["access_type"])
	}
}

func TestPreset_BuildsAuthorizationURL(t *testing.T) {
	p := Preset()
	cfg := &oauth.Config{
		ClientID:     "id1",
		ClientSecret: "secret1",
		RedirectURL:  "http://127.0.0.1:8085/callback",
	}
	p.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	u, err := oauth.BuildAuthorizationURL(cfg, p.ExtraParams(nil))
	if err != nil {
		t.Fatalf("BuildAuthorizationURL() error = %v", err)
	}
	q := u.Query()
	if got := q.Get("scope"); got != "openid email profile" {
		t.Errorf("scope = %q", got)
	}
	if got := q.Get("prompt"); got != "consent" {
		t.Errorf("prompt = %q, want consent", got)
	}
}
