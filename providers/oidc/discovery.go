package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/giantswarm/oauth-client/internal/util"
	"github.com/giantswarm/oauth-client/providers"
)

const (
	// DefaultCacheTTL is used when NewDiscoveryClient is given no TTL
	DefaultCacheTTL = time.Hour

	// DefaultTimeout bounds a discovery request
	DefaultTimeout = 10 * time.Second

	wellKnownPath   = "/.well-known/openid-configuration"
	maxDocumentSize = 1 << 20
)

// DefaultScopes are requested from a discovered provider when the
// configuration names none.
var DefaultScopes = []string{"openid", "profile", "email"}

// DiscoveryDocument is the subset of OpenID Provider Metadata the client uses.
type DiscoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserInfoEndpoint                  string   `json:"userinfo_endpoint,omitempty"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}

// Endpoints returns the authorization and token endpoints.
func (d *DiscoveryDocument) Endpoints() providers.Endpoints {
	return providers.Endpoints{
		AuthorizationURL: d.AuthorizationEndpoint,
		TokenURL:         d.TokenEndpoint,
	}
}

// SupportsRefresh reports whether the provider advertises the refresh_token
// grant. Providers that omit grant_types_supported default to
// authorization_code and implicit only.
func (d *DiscoveryDocument) SupportsRefresh() bool {
	return slices.Contains(d.GrantTypesSupported, "refresh_token")
}

type cachedDocument struct {
	document  *DiscoveryDocument
	fetchedAt time.Time
}

// DiscoveryClient fetches and caches discovery documents. Safe for
// concurrent use.
type DiscoveryClient struct {
	httpClient *http.Client
	cacheTTL   time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]*cachedDocument
}

// NewDiscoveryClient creates a discovery client. A nil httpClient uses one
// with DefaultTimeout, a zero cacheTTL uses DefaultCacheTTL and a nil logger
// uses slog.Default().
func NewDiscoveryClient(httpClient *http.Client, cacheTTL time.Duration, logger *slog.Logger) *DiscoveryClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscoveryClient{
		httpClient: httpClient,
		cacheTTL:   cacheTTL,
		logger:     logger,
		now:        time.Now,
		cache:      make(map[string]*cachedDocument),
	}
}

// Discover returns the discovery document of issuerURL, from cache when fresh.
func (c *DiscoveryClient) Discover(ctx context.Context, issuerURL string) (*DiscoveryDocument, error) {
	if err := ValidateIssuerURL(issuerURL); err != nil {
		return nil, fmt.Errorf("invalid issuer URL: %w", err)
	}
	issuer := util.NormalizeIssuer(issuerURL)

	if doc := c.cached(issuer); doc != nil {
		c.logger.Debug("OIDC discovery cache hit", "issuer", issuer)
		return doc, nil
	}

	discoveryURL := issuer + wellKnownPath
	c.logger.Debug("Fetching OIDC discovery document", "url", discoveryURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OIDC discovery document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OIDC discovery failed with status %d", resp.StatusCode)
	}

	var doc DiscoveryDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}

	if err := validateDocument(issuer, &doc); err != nil {
		return nil, fmt.Errorf("invalid discovery document: %w", err)
	}

	c.mu.Lock()
	c.cache[issuer] = &cachedDocument{document: &doc, fetchedAt: c.now()}
	c.mu.Unlock()

	c.logger.Info("OIDC discovery successful",
		"issuer", issuer,
		"authorization_endpoint", doc.AuthorizationEndpoint,
		"token_endpoint", doc.TokenEndpoint)
	return &doc, nil
}

// Preset discovers issuerURL and returns a preset for it.
func (c *DiscoveryClient) Preset(ctx context.Context, issuerURL string) (providers.Preset, error) {
	doc, err := c.Discover(ctx, issuerURL)
	if err != nil {
		return providers.Preset{}, err
	}
	return providers.Preset{
		Name:          doc.Issuer,
		Endpoints:     doc.Endpoints(),
		DefaultScopes: DefaultScopes,
		Refreshable:   doc.SupportsRefresh(),
	}, nil
}

func (c *DiscoveryClient) cached(issuer string) *DiscoveryDocument {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[issuer]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.fetchedAt) >= c.cacheTTL {
		delete(c.cache, issuer)
		return nil
	}
	return entry.document
}

// validateDocument requires the document to name the issuer it was fetched
// from and every endpoint to be HTTPS.
func validateDocument(issuer string, doc *DiscoveryDocument) error {
	if util.NormalizeIssuer(doc.Issuer) != issuer {
		return fmt.Errorf("issuer mismatch: fetched from %s, document names %q", issuer, doc.Issuer)
	}

	required := []struct{ name, url string }{
		{"authorization_endpoint", doc.AuthorizationEndpoint},
		{"token_endpoint", doc.TokenEndpoint},
	}
	for _, ep := range required {
		if ep.url == "" {
			return fmt.Errorf("%s is required but missing", ep.name)
		}
	}

	for _, ep := range append(required,
		struct{ name, url string }{"issuer", doc.Issuer},
		struct{ name, url string }{"userinfo_endpoint", doc.UserInfoEndpoint},
		struct{ name, url string }{"revocation_endpoint", doc.RevocationEndpoint},
	) {
		if ep.url != "" && !strings.HasPrefix(ep.url, "https://") {
			return fmt.Errorf("%s must use HTTPS: %s", ep.name, ep.url)
		}
	}
	return nil
}

// ClearCache drops every cached document.
func (c *DiscoveryClient) ClearCache() {
	c.mu.Lock()
	n := len(c.cache)
	clear(c.cache)
	c.mu.Unlock()
	c.logger.Debug("OIDC discovery cache cleared", "entries_removed", n)
}
