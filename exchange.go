package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth-client/instrumentation"
	"github.com/giantswarm/oauth-client/internal/util"
	"github.com/giantswarm/oauth-client/token"
	"github.com/giantswarm/oauth-client/transport"
)

// Token request form fields and grant types
const (
	FieldGrantType    = "grant_type"
	FieldCode         = "code"
	FieldClientID     = "client_id"
	FieldClientSecret = "client_secret"
	FieldRedirectURI  = "redirect_uri"
	FieldRefreshToken = "refresh_token"

	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

var (
	errEmptyCode      = errors.New("authorization code is empty")
	errNoRefreshToken = errors.New("token has no refresh token")
)

// TokenExchanger performs the two token endpoint exchanges. Each call sends
// at most one request and never retries.
type TokenExchanger interface {
	// ExchangeCode trades an authorization code for a token.
	ExchangeCode(ctx context.Context, code string) (*token.AccessToken, error)

	// Refresh trades current's refresh token for a new token state.
	// It fails with ErrRefreshFailed before any request when current has no refresh token.
	Refresh(ctx context.Context, current *token.AccessToken) (*token.AccessToken, error)
}

// Exchanger is the TokenExchanger backed by a transport.Transport.
type Exchanger struct {
	cfg       *Config
	transport transport.Transport
	now       func() time.Time
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewExchanger creates an Exchanger. A nil transport uses transport.NewHTTP
// configured from cfg.
func NewExchanger(cfg *Config, tr transport.Transport) *Exchanger {
	if tr == nil {
		tr = newHTTPTransport(cfg)
	}
	return &Exchanger{
		cfg:       cfg,
		transport: tr,
		now:       time.Now,
		logger:    cfg.logger(),
		tracer:    cfg.instrumentation().Tracer("client"),
	}
}

func newHTTPTransport(cfg *Config) *transport.HTTPTransport {
	return transport.NewHTTP(transport.Config{
		HTTPClient:        cfg.httpClient(),
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		Debug:             cfg.Debug,
		Logger:            cfg.logger(),
		Instrumentation:   cfg.instrumentation(),
	})
}

// ExchangeCode implements TokenExchanger.
func (x *Exchanger) ExchangeCode(ctx context.Context, code string) (*token.AccessToken, error) {
	ctx, span := x.tracer.Start(ctx, "oauth.exchange_code")
	defer span.End()
	instrumentation.AddGrantAttributes(span, x.cfg.ClientID, GrantTypeAuthorizationCode)

	if code == "" {
		err := newFlowError(ErrTokenExchangeFailed, "exchange", 0, errEmptyCode)
		instrumentation.RecordError(span, err)
		return nil, err
	}

	form := url.Values{
		FieldGrantType:    {GrantTypeAuthorizationCode},
		FieldCode:         {code},
		FieldClientID:     {x.cfg.ClientID},
		FieldClientSecret: {x.cfg.ClientSecret},
		FieldRedirectURI:  {x.cfg.RedirectURL},
	}

	if x.cfg.Debug {
		x.logger.Debug("Exchanging authorization code",
			"client_id", x.cfg.ClientID,
			"code_prefix", util.CredentialPrefix(code))
	}

	fields, status, err := x.post(ctx, form, ErrTokenExchangeFailed, "exchange")
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}

	tok, err := token.NewAt(fields, x.now())
	if err != nil {
		ferr := newFlowError(ErrTokenExchangeFailed, "exchange", status, err)
		instrumentation.RecordError(span, ferr)
		return nil, ferr
	}

	instrumentation.SetSpanAttributes(span, attribute.Bool(instrumentation.AttrRefreshable, tok.CanRefresh()))
	instrumentation.SetSpanSuccess(span)
	return tok, nil
}

// Refresh implements TokenExchanger.
func (x *Exchanger) Refresh(ctx context.Context, current *token.AccessToken) (*token.AccessToken, error) {
	ctx, span := x.tracer.Start(ctx, "oauth.refresh")
	defer span.End()
	instrumentation.AddGrantAttributes(span, x.cfg.ClientID, GrantTypeRefreshToken)

	if current == nil || !current.CanRefresh() {
		err := newFlowError(ErrRefreshFailed, "refresh", 0, errNoRefreshToken)
		instrumentation.RecordError(span, err)
		return nil, err
	}

	form := url.Values{
		FieldGrantType:    {GrantTypeRefreshToken},
		FieldRefreshToken: {current.RefreshToken()},
		FieldClientID:     {x.cfg.ClientID},
		FieldClientSecret: {x.cfg.ClientSecret},
	}

	fields, status, err := x.post(ctx, form, ErrRefreshFailed, "refresh")
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}

	next, err := current.RefreshAt(fields, x.now())
	if err != nil {
		ferr := newFlowError(ErrRefreshFailed, "refresh", status, err)
		instrumentation.RecordError(span, ferr)
		return nil, ferr
	}

	instrumentation.SetSpanAttributes(span,
		attribute.Bool(instrumentation.AttrRefreshRotated, next.RefreshToken() != current.RefreshToken()))
	instrumentation.SetSpanSuccess(span)
	return next, nil
}

// post sends one token request and decodes a successful body.
// Failures are returned as *FlowError of the given kind.
func (x *Exchanger) post(ctx context.Context, form url.Values, kind error, op string) (map[string]any, int, error) {
	var res transport.Result
	select {
	case r, ok := <-x.transport.PostForm(ctx, x.cfg.TokenURL, form):
		if !ok {
			return nil, 0, newFlowError(kind, op, 0, errors.New("transport delivered no result"))
		}
		res = r
	case <-ctx.Done():
		return nil, 0, newFlowError(kind, op, 0, ctx.Err())
	}

	if res.Err != nil {
		return nil, 0, newFlowError(kind, op, 0, res.Err)
	}
	resp := res.Response
	if resp == nil {
		return nil, 0, newFlowError(kind, op, 0, errors.New("transport delivered no response"))
	}

	if !resp.Success() {
		var cause error = fmt.Errorf("unexpected status %d", resp.Status)
		if oerr := parseOAuthError(resp.Body, resp.ContentType(), resp.Status); oerr != nil {
			cause = oerr
		}
		x.logger.Warn("Token endpoint rejected request",
			"client_id", x.cfg.ClientID,
			"grant_type", form.Get(FieldGrantType),
			"status", resp.Status,
			"error", cause)
		return nil, resp.Status, newFlowError(kind, op, resp.Status, cause)
	}

	fields, err := token.ParseResponse(resp.Body, resp.ContentType())
	if err != nil {
		return nil, resp.Status, newFlowError(kind, op, resp.Status, err)
	}

	// Some providers answer errors with 200 and an error object.
	if _, hasToken := fields[token.FieldAccessToken]; !hasToken {
		if oerr := parseOAuthError(resp.Body, resp.ContentType(), resp.Status); oerr != nil {
			return nil, resp.Status, newFlowError(kind, op, resp.Status, oerr)
		}
	}

	return fields, resp.Status, nil
}
