package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/giantswarm/oauth-client/instrumentation"
	"github.com/giantswarm/oauth-client/internal/testutil"
	"github.com/giantswarm/oauth-client/storage/memory"
	"github.com/giantswarm/oauth-client/token"
)

const eventTimeout = 2 * time.Second

// recorder is an EventSink that records every notification in order.
type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *recorder) add(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

func (r *recorder) AuthorizationCodeReceived(*Client)      { r.add("code_received", nil) }
func (r *recorder) AccessTokenReceived(*Client)            { r.add("token_received", nil) }
func (r *recorder) AccessTokenRefreshed(*Client)           { r.add("token_refreshed", nil) }
func (r *recorder) AuthorizationCancelled(*Client)         { r.add("cancelled", nil) }
func (r *recorder) AuthorizationFailed(_ *Client, e error) { r.add("failed", e) }

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) count(name string) int {
	n := 0
	for _, e := range r.Events() {
		if e == name {
			n++
		}
	}
	return n
}

// waitFor blocks until name has been delivered.
func (r *recorder) waitFor(t *testing.T, name string) {
	t.Helper()
	testutil.Eventually(t, eventTimeout, func() bool { return r.count(name) > 0 }, "event "+name)
}

type navigatorFunc func(ctx context.Context, u *url.URL) error

func (f navigatorFunc) Navigate(ctx context.Context, u *url.URL) error { return f(ctx, u) }

type clientFixture struct {
	client *Client
	server *testutil.TokenServer
	clock  *testutil.MockTime
	sink   *recorder
}

func newClientFixture(t *testing.T, mutate func(*Config), opts []Option, responses ...testutil.TokenResponse) *clientFixture {
	t.Helper()
	ts := testutil.NewTokenServer(t, responses...)
	cfg := validConfig()
	cfg.TokenURL = ts.URL + "/token"
	if mutate != nil {
		mutate(cfg)
	}

	clock := testutil.NewMockTime(testEpoch)
	sink := &recorder{}
	c, err := NewClient(cfg, sink, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return &clientFixture{client: c, server: ts, clock: clock, sink: sink}
}

func (f *clientFixture) navigate(t *testing.T, raw string) Decision {
	t.Helper()
	return f.client.HandleNavigation(context.Background(), mustParse(t, raw))
}

func (f *clientFixture) begin(t *testing.T) *url.URL {
	t.Helper()
	u, err := f.client.BeginAuthorization(context.Background(), nil)
	require.NoError(t, err)
	return u
}

func TestNewClient_InvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.CancelURL = cfg.RedirectURL
	_, err := NewClient(cfg, nil)
	assert.Error(t, err)

	_, err = NewClient(nil, nil)
	assert.Error(t, err)
}

func TestNewClient_CopiesConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Scopes = []string{"openid"}
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	cfg.ClientID = "changed"
	cfg.Scopes[0] = "changed"

	got := c.Config()
	assert.Equal(t, "id1", got.ClientID)
	assert.Equal(t, []string{"openid"}, got.Scopes)
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.AccessToken())
}

func TestClient_AuthorizationCodeFlow(t *testing.T) {
	f := newClientFixture(t, nil, nil,
		testutil.JSON(`{"access_token":"tok1","refresh_token":"r1","expires_in":3600}`))

	u := f.begin(t)
	assert.Equal(t, StateAuthorizationRequested, f.client.State())

	// the authorization page and the login pages it links to are not ours
	assert.Equal(t, Proceed, f.client.HandleNavigation(context.Background(), u))
	assert.Equal(t, Proceed, f.navigate(t, "https://auth.example.com/login?step=2"))
	assert.Equal(t, StateAwaitingCallback, f.client.State())

	assert.Equal(t, Absorb, f.navigate(t, "app://cb?code=XYZ"))
	f.sink.waitFor(t, "token_received")

	assert.Equal(t, StateAuthorized, f.client.State())
	tok := f.client.AccessToken()
	require.NotNil(t, tok)
	assert.Equal(t, "tok1", tok.AccessToken())
	assert.Equal(t, "r1", tok.RefreshToken())
	assert.Equal(t, []string{"code_received", "token_received"}, f.sink.Events())

	reqs := f.server.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "XYZ", reqs[0].Get(FieldCode))
	assert.Zero(t, f.client.PendingOperations())
}

func TestClient_CancelURL(t *testing.T) {
	f := newClientFixture(t, nil, nil)
	f.begin(t)

	assert.Equal(t, Absorb, f.navigate(t, "app://cancel"))
	f.sink.waitFor(t, "cancelled")

	assert.Equal(t, StateCancelled, f.client.State())
	assert.Nil(t, f.client.AccessToken())
	assert.Zero(t, f.server.RequestCount())
}

func TestClient_AccessDeniedCancels(t *testing.T) {
	f := newClientFixture(t, nil, nil)
	f.begin(t)

	assert.Equal(t, Absorb, f.navigate(t, "app://cb?error=access_denied"))
	f.sink.waitFor(t, "cancelled")
	assert.Equal(t, StateCancelled, f.client.State())
}

func TestClient_InvalidCallback(t *testing.T) {
	f := newClientFixture(t, nil, nil)
	f.begin(t)

	assert.Equal(t, Absorb, f.navigate(t, "app://cb?foo=bar"))
	f.sink.waitFor(t, "failed")

	assert.Equal(t, StateFailed, f.client.State())
	assert.True(t, errors.Is(f.client.LastError(), ErrInvalidCallback))
	require.Len(t, f.sink.Errors(), 1)
	assert.True(t, errors.Is(f.sink.Errors()[0], ErrInvalidCallback))
	assert.Zero(t, f.server.RequestCount())
}

func TestClient_ExchangeFailure(t *testing.T) {
	f := newClientFixture(t, nil, nil, testutil.TokenResponse{
		Status:      http.StatusBadRequest,
		ContentType: "application/json",
		Body:        `{"error":"invalid_grant"}`,
	})
	f.begin(t)

	f.navigate(t, "app://cb?code=XYZ")
	f.sink.waitFor(t, "failed")

	assert.Equal(t, StateFailed, f.client.State())
	assert.Nil(t, f.client.AccessToken())
	assert.True(t, errors.Is(f.client.LastError(), ErrTokenExchangeFailed))
	assert.Zero(t, f.sink.count("token_received"))
}

func TestClient_MalformedExchangeResponse(t *testing.T) {
	f := newClientFixture(t, nil, nil, testutil.JSON(`{"refresh_token":"r1"}`))
	f.begin(t)

	f.navigate(t, "app://cb?code=XYZ")
	f.sink.waitFor(t, "failed")

	err := f.client.LastError()
	assert.True(t, errors.Is(err, ErrMalformedResponse))
	assert.True(t, errors.Is(err, ErrTokenExchangeFailed))
}

func TestClient_CodeOutsideFlowIsIgnored(t *testing.T) {
	f := newClientFixture(t, nil, nil, testutil.JSON(`{"access_token":"tok1"}`))

	assert.Equal(t, Absorb, f.navigate(t, "app://cb?code=XYZ"))
	assert.Equal(t, StateIdle, f.client.State())
	assert.Zero(t, f.server.RequestCount())
}

func TestClient_SecondCodeDuringExchangeIsIgnored(t *testing.T) {
	release := make(chan struct{})
	f := newClientFixture(t, nil, nil,
		testutil.TokenResponse{Release: release, ContentType: "application/json", Body: `{"access_token":"tok1"}`})
	f.begin(t)

	f.navigate(t, "app://cb?code=first")
	require.Equal(t, StateExchangingCode, f.client.State())
	assert.Equal(t, 1, f.client.PendingOperations())

	assert.Equal(t, Absorb, f.navigate(t, "app://cb?code=second"))
	close(release)
	f.sink.waitFor(t, "token_received")

	reqs := f.server.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "first", reqs[0].Get(FieldCode))
	assert.Equal(t, 1, f.sink.count("token_received"))
}

func TestClient_BeginRejectedDuringExchange(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	f := newClientFixture(t, nil, nil, testutil.TokenResponse{Release: release})
	f.begin(t)
	f.navigate(t, "app://cb?code=XYZ")

	_, err := f.client.BeginAuthorization(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestClient_CancelDuringExchangeDiscardsResult(t *testing.T) {
	release := make(chan struct{})
	f := newClientFixture(t, nil, nil,
		testutil.TokenResponse{Release: release, ContentType: "application/json", Body: `{"access_token":"tok1"}`})
	f.begin(t)

	op, err := f.client.ExtractAccessCode(context.Background(), mustParse(t, "app://cb?code=XYZ"))
	require.NoError(t, err)

	assert.True(t, f.client.Cancel(context.Background()))
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	tok, err := op.Wait(ctx)
	assert.Nil(t, tok)
	assert.Error(t, err)

	f.sink.waitFor(t, "cancelled")
	assert.Equal(t, StateCancelled, f.client.State())
	assert.Nil(t, f.client.AccessToken())
	assert.Zero(t, f.sink.count("token_received"))
	assert.Zero(t, f.client.PendingOperations())
}

func TestClient_ExtractAccessCode(t *testing.T) {
	f := newClientFixture(t, nil, nil, testutil.JSON(`{"access_token":"tok1"}`))

	_, err := f.client.ExtractAccessCode(context.Background(), mustParse(t, "app://cb?code=XYZ"))
	assert.True(t, errors.Is(err, ErrInvalidState), "no flow in progress")

	f.begin(t)
	_, err = f.client.ExtractAccessCode(context.Background(), mustParse(t, "https://example.com/"))
	assert.True(t, errors.Is(err, ErrInvalidCallback))

	op, err := f.client.ExtractAccessCode(context.Background(), mustParse(t, "app://cb?code=XYZ"))
	require.NoError(t, err)
	assert.Equal(t, OperationExchange, op.Kind())
	assert.NotEmpty(t, op.ID())

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	tok, err := op.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok1", tok.AccessToken())
	assert.Equal(t, StateAuthorized, f.client.State())
}

func TestClient_ExtractAccessCode_ReturnsInFlightOperation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	f := newClientFixture(t, nil, nil, testutil.TokenResponse{Release: release})
	f.begin(t)

	first, err := f.client.ExtractAccessCode(context.Background(), mustParse(t, "app://cb?code=XYZ"))
	require.NoError(t, err)
	second, err := f.client.ExtractAccessCode(context.Background(), mustParse(t, "app://cb?code=XYZ"))
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestClient_VerifyAuthorization(t *testing.T) {
	f := newClientFixture(t, nil, nil, testutil.JSON(`{"access_token":"tok1","refresh_token":"ref1"}`))

	_, err := f.client.VerifyAuthorization(context.Background(), "")
	assert.True(t, errors.Is(err, ErrInvalidCallback))

	// a code obtained out of band needs no prior BeginAuthorization
	op, err := f.client.VerifyAuthorization(context.Background(), "RAW")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	tok, err := op.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok1", tok.AccessToken())
	assert.Equal(t, StateAuthorized, f.client.State())

	reqs := f.server.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "RAW", reqs[0].Get(FieldCode))
	assert.Equal(t, GrantTypeAuthorizationCode, reqs[0].Get(FieldGrantType))

	f.sink.waitFor(t, "token_received")
	assert.Equal(t, 1, f.sink.count("code_received"))
}

func TestClient_VerifyAuthorization_InFlightAndState(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	f := newClientFixture(t, nil, nil, testutil.TokenResponse{Release: release})

	first, err := f.client.VerifyAuthorization(context.Background(), "RAW")
	require.NoError(t, err)
	second, err := f.client.VerifyAuthorization(context.Background(), "OTHER")
	require.NoError(t, err)
	assert.Same(t, first, second)

	guarded := newClientFixture(t, func(c *Config) { c.Security.UseState = true }, nil)
	guarded.begin(t)
	_, err = guarded.client.VerifyAuthorization(context.Background(), "RAW")
	assert.True(t, errors.Is(err, ErrInvalidCallback))
	assert.True(t, errors.Is(err, ErrStateMismatch))
	assert.Equal(t, StateAuthorizationRequested, guarded.client.State(), "a rejected bare code does not end the flow")
	assert.Zero(t, guarded.server.RequestCount())
}

func TestClient_State(t *testing.T) {
	f := newClientFixture(t, func(c *Config) { c.Security.UseState = true }, nil,
		testutil.JSON(`{"access_token":"tok1"}`))

	u := f.begin(t)
	state := u.Query().Get(ParamState)
	require.NotEmpty(t, state)

	f.navigate(t, "app://cb?code=XYZ&state="+url.QueryEscape(state))
	f.sink.waitFor(t, "token_received")
	assert.Equal(t, StateAuthorized, f.client.State())
}

func TestClient_StateMismatch(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "missing state", query: "code=XYZ"},
		{name: "forged state", query: "code=XYZ&state=forged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClientFixture(t, func(c *Config) { c.Security.UseState = true }, nil)
			f.begin(t)

			assert.Equal(t, Absorb, f.navigate(t, "app://cb?"+tt.query))
			f.sink.waitFor(t, "failed")

			err := f.client.LastError()
			assert.True(t, errors.Is(err, ErrInvalidCallback))
			assert.True(t, errors.Is(err, ErrStateMismatch))
			assert.Zero(t, f.server.RequestCount())
		})
	}
}

func TestClient_StateIsSingleUse(t *testing.T) {
	f := newClientFixture(t, func(c *Config) { c.Security.UseState = true }, nil,
		testutil.JSON(`{"access_token":"tok1"}`))

	state := f.begin(t).Query().Get(ParamState)
	f.navigate(t, "app://cb?code=XYZ&state="+url.QueryEscape(state))
	f.sink.waitFor(t, "token_received")

	// a replayed redirect after a new authorization must not be accepted
	f.begin(t)
	f.navigate(t, "app://cb?code=XYZ&state="+url.QueryEscape(state))
	f.sink.waitFor(t, "failed")
	assert.True(t, errors.Is(f.client.LastError(), ErrStateMismatch))
	assert.Equal(t, 1, f.server.RequestCount())
}

func TestClient_AuthorizeUsing(t *testing.T) {
	f := newClientFixture(t, nil, nil)

	var opened *url.URL
	err := f.client.AuthorizeUsing(context.Background(), navigatorFunc(func(_ context.Context, u *url.URL) error {
		opened = u
		return nil
	}), map[string]string{"prompt": "consent"})
	require.NoError(t, err)

	require.NotNil(t, opened)
	assert.Equal(t, "consent", opened.Query().Get("prompt"))
	assert.Equal(t, StateAwaitingCallback, f.client.State())
}

func TestClient_AuthorizeUsing_NavigationFails(t *testing.T) {
	f := newClientFixture(t, nil, nil)

	err := f.client.AuthorizeUsing(context.Background(), navigatorFunc(func(context.Context, *url.URL) error {
		return errors.New("no browser")
	}), nil)
	require.Error(t, err)
	assert.Equal(t, StateFailed, f.client.State())
	f.sink.waitFor(t, "failed")
}

func TestClient_EnsureFreshToken_NotExpired(t *testing.T) {
	tok := mustToken(t, map[string]any{"access_token": "tok1", "refresh_token": "r1", "expires_in": 3600}, testEpoch)
	f := newClientFixture(t, nil, []Option{WithToken(tok)})

	got, err := f.client.EnsureFreshToken(context.Background())
	require.NoError(t, err)
	assert.Same(t, tok, got)
	assert.Zero(t, f.server.RequestCount())
}

func TestClient_EnsureFreshToken_Refreshes(t *testing.T) {
	tok := mustToken(t, map[string]any{"access_token": "tok1", "refresh_token": "r1", "expires_in": 60}, testEpoch)
	f := newClientFixture(t, nil, []Option{WithToken(tok)},
		testutil.JSON(`{"access_token":"tok2","expires_in":3600}`))
	f.clock.Advance(2 * time.Minute)

	got, err := f.client.EnsureFreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok2", got.AccessToken())
	assert.Equal(t, "r1", got.RefreshToken())
	assert.False(t, got.HasExpiredAt(f.clock.Now()))

	f.sink.waitFor(t, "token_refreshed")
	assert.Equal(t, StateAuthorized, f.client.State())
	assert.Same(t, got, f.client.AccessToken())
	assert.Equal(t, 1, f.sink.count("token_refreshed"))
	assert.Equal(t, "r1", f.server.Requests()[0].Get(FieldRefreshToken))
}

func TestClient_EnsureFreshToken_ConcurrentCallersShareRefresh(t *testing.T) {
	release := make(chan struct{})
	tok := mustToken(t, map[string]any{"access_token": "tok1", "refresh_token": "r1", "expires_in": 0}, testEpoch)
	f := newClientFixture(t, nil, []Option{WithToken(tok)}, testutil.TokenResponse{
		Release:     release,
		ContentType: "application/json",
		Body:        `{"access_token":"tok2","expires_in":3600}`,
	})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*token.AccessToken, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.client.EnsureFreshToken(context.Background())
		}(i)
	}

	testutil.Eventually(t, eventTimeout, func() bool { return f.server.RequestCount() == 1 }, "refresh request")
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok2", results[i].AccessToken())
	}
	assert.Equal(t, 1, f.server.RequestCount())
	f.sink.waitFor(t, "token_refreshed")
	assert.Equal(t, 1, f.sink.count("token_refreshed"))
}

func TestClient_EnsureFreshToken_NoRefreshToken(t *testing.T) {
	tok := mustToken(t, map[string]any{"access_token": "tok1", "expires_in": 0}, testEpoch)
	f := newClientFixture(t, nil, []Option{WithToken(tok)})

	_, err := f.client.EnsureFreshToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRefreshFailed))

	f.sink.waitFor(t, "failed")
	assert.True(t, errors.Is(f.sink.Errors()[0], ErrRefreshFailed))
	assert.Equal(t, StateAuthorized, f.client.State())
	assert.Same(t, tok, f.client.AccessToken())
	assert.Zero(t, f.server.RequestCount())
}

func TestClient_EnsureFreshToken_RefreshRejected(t *testing.T) {
	tok := mustToken(t, map[string]any{"access_token": "tok1", "refresh_token": "r1", "expires_in": 0}, testEpoch)
	f := newClientFixture(t, nil, []Option{WithToken(tok)}, testutil.TokenResponse{
		Status:      http.StatusBadRequest,
		ContentType: "application/json",
		Body:        `{"error":"invalid_grant"}`,
	})

	_, err := f.client.EnsureFreshToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRefreshFailed))

	assert.Equal(t, StateFailed, f.client.State())
	assert.Nil(t, f.client.AccessToken())
	assert.Same(t, tok, f.client.LastToken())
	f.sink.waitFor(t, "failed")
	assert.Zero(t, f.sink.count("token_refreshed"))
}

func TestClient_EnsureFreshToken_NoToken(t *testing.T) {
	f := newClientFixture(t, nil, nil)
	_, err := f.client.EnsureFreshToken(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestClient_RefreshAccessToken(t *testing.T) {
	tok := mustToken(t, map[string]any{"access_token": "tok1", "refresh_token": "r1", "expires_in": 3600}, testEpoch)
	f := newClientFixture(t, nil, nil, testutil.JSON(`{"access_token":"tok2","refresh_token":"r2"}`))

	// an explicit token can be refreshed before any flow ran
	op, err := f.client.RefreshAccessToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, OperationRefresh, op.Kind())

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	next, err := op.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok2", next.AccessToken())
	assert.Equal(t, "r2", next.RefreshToken())
	assert.Equal(t, StateAuthorized, f.client.State())
	f.sink.waitFor(t, "token_refreshed")
}

func TestClient_RefreshAccessToken_InvalidState(t *testing.T) {
	f := newClientFixture(t, nil, nil)
	_, err := f.client.RefreshAccessToken(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrInvalidState))

	f.begin(t)
	tok := mustToken(t, map[string]any{"access_token": "tok1", "refresh_token": "r1"}, testEpoch)
	_, err = f.client.RefreshAccessToken(context.Background(), tok)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestClient_Reauthorize(t *testing.T) {
	f := newClientFixture(t, nil, nil,
		testutil.JSON(`{"access_token":"tok1"}`),
		testutil.JSON(`{"access_token":"tok2"}`))

	for _, want := range []string{"tok1", "tok2"} {
		f.begin(t)
		f.navigate(t, "app://cb?code="+want)
		testutil.Eventually(t, eventTimeout, func() bool {
			tok := f.client.AccessToken()
			return tok != nil && tok.AccessToken() == want
		}, "token "+want)
	}
	assert.Equal(t, 2, f.sink.count("token_received"))
}

func TestClient_CancelIdle(t *testing.T) {
	f := newClientFixture(t, nil, nil)
	assert.False(t, f.client.Cancel(context.Background()))
	assert.Equal(t, StateIdle, f.client.State())
}

func TestClient_Close(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	f := newClientFixture(t, nil, nil, testutil.TokenResponse{Release: release})
	f.begin(t)

	op, err := f.client.ExtractAccessCode(context.Background(), mustParse(t, "app://cb?code=XYZ"))
	require.NoError(t, err)

	require.NoError(t, f.client.Close())
	require.NoError(t, f.client.Close(), "Close is idempotent")

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	_, err = op.Wait(ctx)
	assert.True(t, errors.Is(err, ErrClientClosed))

	_, err = f.client.BeginAuthorization(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrClientClosed))
	assert.Equal(t, Absorb, f.navigate(t, "app://cb?code=again"))
	assert.Zero(t, f.sink.count("token_received"))
}

func TestClient_CloseFromSink(t *testing.T) {
	ts := testutil.NewTokenServer(t, testutil.JSON(`{"access_token":"tok1"}`))
	cfg := validConfig()
	cfg.TokenURL = ts.URL

	closed := make(chan error, 1)
	c, err := NewClient(cfg, SinkFuncs{
		OnAccessTokenReceived: func(c *Client) { closed <- c.Close() },
	})
	require.NoError(t, err)

	_, err = c.BeginAuthorization(context.Background(), nil)
	require.NoError(t, err)
	c.HandleNavigation(context.Background(), mustParse(t, "app://cb?code=XYZ"))

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(eventTimeout):
		t.Fatal("sink was not called")
	}
}

func TestClient_PendingGaugeFollowsClients(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()
	inst, err := instrumentation.New(instrumentation.Config{Enabled: true, MeterProvider: mp})
	require.NoError(t, err)

	pending := func() []int64 {
		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))
		var values []int64
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if gauge, ok := m.Data.(metricdata.Gauge[int64]); ok && m.Name == "oauth.client.operations.pending" {
					for _, dp := range gauge.DataPoints {
						values = append(values, dp.Value)
					}
				}
			}
		}
		return values
	}

	release := make(chan struct{})
	defer close(release)
	var clients []*Client
	for i := 0; i < 3; i++ {
		f := newClientFixture(t, func(cfg *Config) { cfg.Instrumentation = inst }, nil,
			testutil.TokenResponse{Release: release})
		clients = append(clients, f.client)
	}

	busy := clients[0]
	_, err = busy.BeginAuthorization(context.Background(), nil)
	require.NoError(t, err)
	_, err = busy.ExtractAccessCode(context.Background(), mustParse(t, "app://cb?code=XYZ"))
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, pending(), "one exchange in flight across all clients")

	for _, c := range clients {
		require.NoError(t, c.Close())
	}
	assert.Empty(t, pending(), "closed clients must not report")
}

func TestClient_StorePersistsAndRestores(t *testing.T) {
	store := memory.New()
	f := newClientFixture(t, nil, []Option{WithStore(store, "")},
		testutil.JSON(`{"access_token":"tok1","refresh_token":"r1","expires_in":3600}`))
	f.begin(t)
	f.navigate(t, "app://cb?code=XYZ")
	f.sink.waitFor(t, "token_received")
	testutil.Eventually(t, eventTimeout, func() bool { return store.Len() == 1 }, "token persisted")

	// a second client picks the token up from the store
	other, err := NewClient(validConfig(), nil, WithStore(store, ""), WithClock(f.clock.Now))
	require.NoError(t, err)
	defer func() { _ = other.Close() }()

	tok, err := other.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok1", tok.AccessToken())
	assert.Equal(t, StateAuthorized, other.State())

	_, err = other.Restore(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidState), "restore only from idle")

	require.NoError(t, other.Forget(context.Background()))
	assert.Equal(t, StateIdle, other.State())
	assert.Zero(t, store.Len())
}

func TestClient_TokenSource(t *testing.T) {
	tok := mustToken(t, map[string]any{"access_token": "tok1", "expires_in": 3600}, testEpoch)
	f := newClientFixture(t, nil, []Option{WithToken(tok)})

	ot, err := f.client.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, "tok1", ot.AccessToken)
	assert.Equal(t, "Bearer", ot.TokenType)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "exchanging_code", StateExchangingCode.String())
	assert.Equal(t, "State(99)", State(99).String())
	assert.Equal(t, "absorb", Absorb.String())
	assert.Equal(t, "proceed", Proceed.String())
}
