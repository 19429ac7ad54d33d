package oauth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/oauth-client/instrumentation"
)

const (
	// DefaultHTTPTimeout bounds a single token endpoint request
	DefaultHTTPTimeout = 30 * time.Second

	// EnvPrefix prefixes every variable read by ConfigFromEnv
	EnvPrefix = "OAUTH_"
)

// Config holds the OAuth client configuration
// Structured using composition for better organization and maintainability
type Config struct {
	// ClientID is the OAuth client identifier (required).
	ClientID string `yaml:"client_id" validate:"required"`

	// ClientSecret is the OAuth client secret. Never logged.
	ClientSecret string `yaml:"client_secret" validate:"required"`

	// AuthorizationURL is the authorization endpoint the user is sent to.
	AuthorizationURL string `yaml:"authorization_url" validate:"required,url"`

	// TokenURL is the token endpoint used for code exchange and refresh.
	TokenURL string `yaml:"token_url" validate:"required,url"`

	// RedirectURL is the signaling URL the authorization server redirects to.
	// It may use a custom scheme such as app://cb.
	RedirectURL string `yaml:"redirect_url" validate:"required,url"`

	// CancelURL is an optional signaling URL meaning the user cancelled.
	CancelURL string `yaml:"cancel_url" validate:"omitempty,url"`

	// Scopes are sent as the scope parameter when non-empty.
	Scopes []string `yaml:"scopes"`

	// Debug logs token endpoint request metadata at debug level.
	Debug bool `yaml:"debug"`

	// Rate limiting of token endpoint requests
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Security settings
	Security SecurityConfig `yaml:"security"`

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger `yaml:"-" validate:"-"`

	// HTTPClient is a custom HTTP client for token requests
	// If not provided, a client with DefaultHTTPTimeout is used
	HTTPClient *http.Client `yaml:"-" validate:"-"`

	// Instrumentation receives spans and metrics (optional, no-op by default)
	Instrumentation *instrumentation.Instrumentation `yaml:"-" validate:"-"`
}

// RateLimitConfig holds outbound rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerSecond allowed to the token endpoint. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`

	// Burst is the maximum burst size.
	Burst int `yaml:"burst" validate:"gte=0"`
}

// SecurityConfig holds client security settings
type SecurityConfig struct {
	// UseState adds a one-time state parameter to every authorization request
	// and rejects redirects that do not echo an issued value.
	UseState bool `yaml:"use_state"`

	// EncryptionKey is the AES-256 key (32 bytes) for tokens at rest.
	// Nil disables encryption.
	EncryptionKey []byte `yaml:"-" validate:"omitempty,len=32"`

	// EnableAuditLogging logs flow events with hashed credentials.
	EnableAuditLogging bool `yaml:"enable_audit_logging"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required fields and the URL invariants: every URL is
// absolute, and the redirect and cancel URLs are distinguishable from each
// other and from the two endpoints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	urls := []struct {
		name  string
		value string
	}{
		{"AuthorizationURL", c.AuthorizationURL},
		{"TokenURL", c.TokenURL},
		{"RedirectURL", c.RedirectURL},
		{"CancelURL", c.CancelURL},
	}
	for _, u := range urls {
		if u.value == "" {
			continue
		}
		parsed, err := url.Parse(u.value)
		if err != nil {
			return fmt.Errorf("invalid config: %s: %w", u.name, err)
		}
		if !parsed.IsAbs() {
			return fmt.Errorf("invalid config: %s must be an absolute URI", u.name)
		}
	}

	redirect := canonicalTarget(c.RedirectURL)
	for _, other := range []struct{ name, value string }{
		{"AuthorizationURL", c.AuthorizationURL},
		{"TokenURL", c.TokenURL},
		{"CancelURL", c.CancelURL},
	} {
		if other.value != "" && canonicalTarget(other.value) == redirect {
			return fmt.Errorf("invalid config: RedirectURL must differ from %s", other.name)
		}
	}
	if c.CancelURL != "" {
		cancel := canonicalTarget(c.CancelURL)
		for _, other := range []struct{ name, value string }{
			{"AuthorizationURL", c.AuthorizationURL},
			{"TokenURL", c.TokenURL},
		} {
			if canonicalTarget(other.value) == cancel {
				return fmt.Errorf("invalid config: CancelURL must differ from %s", other.name)
			}
		}
	}
	return nil
}

// canonicalTarget reduces a URL to what Classify matches on.
func canonicalTarget(raw string) string {
	t, err := parseTarget(raw)
	if err != nil {
		return raw
	}
	return t.scheme + "://" + t.host + t.path
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: DefaultHTTPTimeout}
}

func (c *Config) instrumentation() *instrumentation.Instrumentation {
	if c.Instrumentation != nil {
		return c.Instrumentation
	}
	return instrumentation.Noop()
}

// LoadConfigFile reads a YAML configuration file. Unknown keys are rejected.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ConfigFromEnv overlays OAUTH_* environment variables onto cfg.
// A nil cfg starts from an empty configuration.
func ConfigFromEnv(cfg *Config) (*Config, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	strs := map[string]*string{
		"CLIENT_ID":         &cfg.ClientID,
		"CLIENT_SECRET":     &cfg.ClientSecret,
		"AUTHORIZATION_URL": &cfg.AuthorizationURL,
		"TOKEN_URL":         &cfg.TokenURL,
		"REDIRECT_URL":      &cfg.RedirectURL,
		"CANCEL_URL":        &cfg.CancelURL,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "SCOPES"); ok {
		cfg.Scopes = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}

	bools := map[string]*bool{
		"DEBUG":                &cfg.Debug,
		"USE_STATE":            &cfg.Security.UseState,
		"ENABLE_AUDIT_LOGGING": &cfg.Security.EnableAuditLogging,
	}
	for name, dst := range bools {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "RATE_LIMIT_RPS"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %sRATE_LIMIT_RPS: %w", EnvPrefix, err)
		}
		cfg.RateLimit.RequestsPerSecond = rps
	}
	if v, ok := os.LookupEnv(EnvPrefix + "RATE_LIMIT_BURST"); ok {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %sRATE_LIMIT_BURST: %w", EnvPrefix, err)
		}
		cfg.RateLimit.Burst = burst
	}

	return cfg, nil
}
