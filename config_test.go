package oauth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ClientID:         "id1",
		ClientSecret:     "secret1",
		AuthorizationURL: "https://auth.example.com/authorize",
		TokenURL:         "https://auth.example.com/token",
		RedirectURL:      "app://cb",
		CancelURL:        "app://cancel",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:   "cancel URL optional",
			mutate: func(c *Config) { c.CancelURL = "" },
		},
		{
			name:   "loopback redirect",
			mutate: func(c *Config) { c.RedirectURL = "http://127.0.0.1:8085/callback" },
		},
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.ClientID = "" },
			wantErr: "ClientID",
		},
		{
			name:    "missing client secret",
			mutate:  func(c *Config) { c.ClientSecret = "" },
			wantErr: "ClientSecret",
		},
		{
			name:    "relative token URL",
			mutate:  func(c *Config) { c.TokenURL = "/token" },
			wantErr: "TokenURL",
		},
		{
			name:    "redirect equals cancel",
			mutate:  func(c *Config) { c.CancelURL = "app://cb" },
			wantErr: "RedirectURL must differ from CancelURL",
		},
		{
			name:    "redirect equals cancel modulo trailing slash",
			mutate:  func(c *Config) { c.CancelURL = "APP://CB/" },
			wantErr: "RedirectURL must differ from CancelURL",
		},
		{
			name: "redirect equals cancel modulo default port",
			mutate: func(c *Config) {
				c.RedirectURL = "http://localhost:80/cb"
				c.CancelURL = "http://localhost/cb"
			},
			wantErr: "RedirectURL must differ from CancelURL",
		},
		{
			name: "redirect equals token URL",
			mutate: func(c *Config) {
				c.RedirectURL = "https://auth.example.com/token"
			},
			wantErr: "RedirectURL must differ from TokenURL",
		},
		{
			name: "cancel equals authorization URL",
			mutate: func(c *Config) {
				c.CancelURL = "https://auth.example.com/authorize"
			},
			wantErr: "CancelURL must differ from AuthorizationURL",
		},
		{
			name:    "short encryption key",
			mutate:  func(c *Config) { c.Security.EncryptionKey = []byte("short") },
			wantErr: "EncryptionKey",
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.RateLimit.RequestsPerSecond = -1 },
			wantErr: "RequestsPerSecond",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oauth.yaml")
	content := `
client_id: id1
client_secret: secret1
authorization_url: https://auth.example.com/authorize
token_url: https://auth.example.com/token
redirect_url: http://127.0.0.1:8085/callback
scopes: [openid, email]
rate_limit:
  requests_per_second: 2
  burst: 4
security:
  use_state: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id1", cfg.ClientID)
	assert.Equal(t, []string{"openid", "email"}, cfg.Scopes)
	assert.Equal(t, 2.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 4, cfg.RateLimit.Burst)
	assert.True(t, cfg.Security.UseState)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client_idd: typo\n"), 0o600))

	_, err := LoadConfigFile(path)
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OAUTH_CLIENT_ID", "env-id")
	t.Setenv("OAUTH_CLIENT_SECRET", "env-secret")
	t.Setenv("OAUTH_SCOPES", "openid, profile email")
	t.Setenv("OAUTH_USE_STATE", "true")
	t.Setenv("OAUTH_RATE_LIMIT_RPS", "1.5")

	cfg, err := ConfigFromEnv(validConfig())
	require.NoError(t, err)
	assert.Equal(t, "env-id", cfg.ClientID)
	assert.Equal(t, "env-secret", cfg.ClientSecret)
	assert.Equal(t, "app://cb", cfg.RedirectURL, "unset variables keep file values")
	assert.Equal(t, []string{"openid", "profile", "email"}, cfg.Scopes)
	assert.True(t, cfg.Security.UseState)
	assert.Equal(t, 1.5, cfg.RateLimit.RequestsPerSecond)
}

func TestConfigFromEnv_InvalidBool(t *testing.T) {
	t.Setenv("OAUTH_DEBUG", "sometimes")
	_, err := ConfigFromEnv(nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "OAUTH_DEBUG"))
}
