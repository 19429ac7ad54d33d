package oauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// TokenSource adapts the client to oauth2.TokenSource. Every Token call goes
// through EnsureFreshToken with ctx.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &clientTokenSource{ctx: ctx, client: c}
}

// HTTPClient returns an *http.Client that authorizes requests with the
// client's token, refreshing it when needed.
func (c *Client) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, c.TokenSource(ctx))
}

type clientTokenSource struct {
	ctx    context.Context
	client *Client
}

func (s *clientTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.client.EnsureFreshToken(s.ctx)
	if err != nil {
		return nil, err
	}
	return tok.OAuth2Token(), nil
}
