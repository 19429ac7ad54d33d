package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/giantswarm/oauth-client/instrumentation"
	"github.com/giantswarm/oauth-client/security"
	"github.com/giantswarm/oauth-client/storage"
	"github.com/giantswarm/oauth-client/token"
	"github.com/giantswarm/oauth-client/transport"
)

// persistTimeout bounds saving a token to the configured store
const persistTimeout = 10 * time.Second

// State is a step of the authorization flow.
type State int

const (
	StateIdle State = iota
	StateAuthorizationRequested
	StateAwaitingCallback
	StateExchangingCode
	StateAuthorized
	StateRefreshing
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthorizationRequested:
		return "authorization_requested"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateExchangingCode:
		return "exchanging_code"
	case StateAuthorized:
		return "authorized"
	case StateRefreshing:
		return "refreshing"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Decision tells the navigation collaborator what to do with a navigation.
type Decision int

const (
	// Proceed lets the navigation continue untouched.
	Proceed Decision = iota
	// Absorb blocks the navigation; the URL was a signaling URL.
	Absorb
)

func (d Decision) String() string {
	if d == Absorb {
		return "absorb"
	}
	return "proceed"
}

// Navigator presents an authorization URL to the user, e.g. by opening a browser.
type Navigator interface {
	Navigate(ctx context.Context, u *url.URL) error
}

// Option configures a Client.
type Option func(*Client)

// WithExchanger replaces the token endpoint exchanger.
func WithExchanger(x TokenExchanger) Option {
	return func(c *Client) { c.exchanger = x }
}

// WithTransport sends token requests through tr instead of the default HTTP transport.
func WithTransport(tr transport.Transport) Option {
	return func(c *Client) { c.transport = tr }
}

// WithStore persists every issued token under key. An empty key uses the client ID.
func WithStore(store storage.TokenStore, key string) Option {
	return func(c *Client) {
		c.store = store
		c.storeKey = key
	}
}

// WithToken starts the client Authorized with a previously issued token.
func WithToken(tok *token.AccessToken) Option {
	return func(c *Client) { c.tok = tok }
}

// WithClock sets the time source used for token construction and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client drives the authorization code flow: it builds the authorization
// request, recognizes the redirect, exchanges the code and keeps the token
// fresh. All state transitions are serialized; methods are safe for
// concurrent use.
type Client struct {
	cfg       *Config
	exchanger TokenExchanger
	transport transport.Transport
	sink      EventSink
	store     storage.TokenStore
	storeKey  string
	states    *security.StateIssuer
	auditor   *security.Auditor
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	now       func() time.Time
	events    *dispatcher
	gauge     metric.Registration

	// tracks exchange and refresh goroutines, including their saves
	wg        sync.WaitGroup
	persistMu sync.Mutex

	mu          sync.Mutex
	state       State
	tok         *token.AccessToken
	lastErr     error
	pending     map[string]*Operation
	exchangeOp  *Operation
	refreshOp   *Operation
	issuedState string
	closed      bool
}

// NewClient validates cfg and creates a client in StateIdle, or
// StateAuthorized when WithToken supplied a token. A nil sink discards events.
func NewClient(cfg *Config, sink EventSink, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Later changes to the caller's Config must not affect a running flow.
	own := *cfg
	own.Scopes = append([]string(nil), cfg.Scopes...)

	if sink == nil {
		sink = nopSink{}
	}

	inst := own.instrumentation()
	c := &Client{
		cfg:     &own,
		sink:    sink,
		logger:  own.logger(),
		auditor: security.NewAuditor(own.logger(), own.Security.EnableAuditLogging),
		metrics: inst.Metrics(),
		now:     time.Now,
		pending: make(map[string]*Operation),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.exchanger == nil {
		x := NewExchanger(c.cfg, c.transport)
		x.now = c.now
		c.exchanger = x
	}
	if c.store != nil && c.storeKey == "" {
		c.storeKey = c.cfg.ClientID
	}
	if own.Security.UseState {
		issuer, err := security.NewStateIssuer()
		if err != nil {
			return nil, err
		}
		c.states = issuer
	}
	if c.tok != nil {
		c.state = StateAuthorized
	}

	gauge, err := inst.RegisterPendingOperationsCallback(c.pendingCount)
	if err != nil {
		c.logger.Warn("Failed to register pending operations gauge", "error", err)
	}
	c.gauge = gauge

	c.events = newDispatcher()
	return c, nil
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return *c.cfg
}

// State returns the current flow state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AccessToken returns the current token, or nil in the idle, cancelled and
// failed states.
func (c *Client) AccessToken() *token.AccessToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateIdle, StateCancelled, StateFailed:
		return nil
	}
	return c.tok
}

// LastToken returns the most recently held token regardless of state, e.g.
// the expired token kept after a failed refresh.
func (c *Client) LastToken() *token.AccessToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tok
}

// LastError returns the error that moved the client to StateFailed, if any.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// PendingOperations returns the number of in-flight token requests.
func (c *Client) PendingOperations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) pendingCount() int64 {
	return int64(c.PendingOperations())
}

// BeginAuthorization starts a new flow and returns the authorization URL to
// present to the user. It is rejected while a token request is in flight.
func (c *Client) BeginAuthorization(ctx context.Context, extra map[string]string) (*url.URL, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	if c.state == StateExchangingCode || c.state == StateRefreshing {
		return nil, fmt.Errorf("%w: cannot begin authorization while %s", ErrInvalidState, c.state)
	}

	var state string
	if c.states != nil {
		var err error
		if state, err = c.states.Issue(); err != nil {
			return nil, err
		}
	}

	u, err := buildAuthorizationURL(c.cfg, state, extra)
	if err != nil {
		return nil, err
	}

	c.issuedState = state
	c.lastErr = nil
	c.state = StateAuthorizationRequested

	c.metrics.RecordAuthorizationStarted(ctx, c.cfg.ClientID)
	c.auditor.LogAuthorizationStarted(c.cfg.ClientID, c.cfg.AuthorizationURL, state != "")
	c.logger.Info("Authorization started", "client_id", c.cfg.ClientID, "with_state", state != "")
	return u, nil
}

// AuthorizeUsing begins authorization and hands the URL to nav. On success
// the client awaits the redirect.
func (c *Client) AuthorizeUsing(ctx context.Context, nav Navigator, extra map[string]string) error {
	if nav == nil {
		return fmt.Errorf("navigator is required")
	}
	u, err := c.BeginAuthorization(ctx, extra)
	if err != nil {
		return err
	}
	if err := nav.Navigate(ctx, u); err != nil {
		c.mu.Lock()
		if c.state == StateAuthorizationRequested {
			c.fail(fmt.Errorf("navigating to authorization URL: %w", err))
		}
		c.mu.Unlock()
		return fmt.Errorf("navigating to authorization URL: %w", err)
	}

	c.mu.Lock()
	if c.state == StateAuthorizationRequested {
		c.state = StateAwaitingCallback
	}
	c.mu.Unlock()
	return nil
}

// HandleNavigation must be called for every navigation the user agent
// attempts, before it proceeds. Redirect and cancel URLs are absorbed;
// everything else proceeds. A redirect carrying a code starts the exchange.
func (c *Client) HandleNavigation(ctx context.Context, u *url.URL) Decision {
	cb := Classify(u, c.cfg)
	c.metrics.RecordCallback(ctx, c.cfg.ClientID, cb.Kind.String())

	c.mu.Lock()
	defer c.mu.Unlock()

	if cb.Kind == CallbackUnrelated {
		if c.state == StateAuthorizationRequested && !c.closed {
			c.state = StateAwaitingCallback
		}
		return Proceed
	}

	if c.closed {
		c.logger.Debug("Ignoring callback on closed client", "kind", cb.Kind.String())
		return Absorb
	}
	if !c.awaitingCallback() {
		if c.state == StateExchangingCode && cb.Kind == CallbackAuthorizationCode {
			c.logger.Debug("Ignoring authorization code while an exchange is in flight")
		} else {
			c.logger.Warn("Ignoring callback outside an authorization flow",
				"kind", cb.Kind.String(), "state", c.state.String())
		}
		return Absorb
	}

	switch cb.Kind {
	case CallbackAuthorizationCode:
		if _, err := c.acceptCode(ctx, cb); err != nil {
			c.fail(err)
		}
	case CallbackCancelled:
		c.cancelLocked(ctx)
	case CallbackInvalid:
		c.auditor.LogFailure(security.EventInvalidCallback, c.cfg.ClientID, cb.Err.Error())
		c.fail(cb.Err)
	}
	return Absorb
}

// ExtractAccessCode exchanges the code carried by a URL already known to be
// the redirect, for user agents that deliver the redirect out of band. The
// returned operation completes with the issued token. A second call while
// the exchange is in flight returns the same operation.
func (c *Client) ExtractAccessCode(ctx context.Context, u *url.URL) (*Operation, error) {
	cb := Classify(u, c.cfg)
	if cb.Kind != CallbackAuthorizationCode {
		if cb.Err != nil && cb.Kind == CallbackInvalid {
			return nil, cb.Err
		}
		return nil, newFlowError(ErrInvalidCallback, "callback", 0,
			fmt.Errorf("not an authorization code redirect (%s)", cb.Kind))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	if c.state == StateExchangingCode && c.exchangeOp != nil {
		return c.exchangeOp, nil
	}
	if !c.awaitingCallback() {
		return nil, fmt.Errorf("%w: no authorization in progress (%s)", ErrInvalidState, c.state)
	}

	op, err := c.acceptCode(ctx, cb)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	return op, nil
}

// VerifyAuthorization exchanges an authorization code the caller obtained
// itself, without a redirect URL. It may start a new exchange from any state
// except Refreshing; during an exchange it returns the in-flight operation.
// With Security.UseState there is no state to verify and the call fails with
// ErrInvalidCallback; pass the full redirect to ExtractAccessCode instead.
func (c *Client) VerifyAuthorization(ctx context.Context, code string) (*Operation, error) {
	if code == "" {
		return nil, newFlowError(ErrInvalidCallback, "callback", 0, fmt.Errorf("authorization code is empty"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	switch c.state {
	case StateExchangingCode:
		if c.exchangeOp != nil {
			return c.exchangeOp, nil
		}
	case StateRefreshing:
		return nil, fmt.Errorf("%w: refresh in progress", ErrInvalidState)
	}
	if c.states != nil {
		return nil, newFlowError(ErrInvalidCallback, "callback", 0,
			fmt.Errorf("%w: a bare code carries no state", ErrStateMismatch))
	}

	op, err := c.acceptCode(ctx, Callback{Kind: CallbackAuthorizationCode, Code: code})
	if err != nil {
		c.fail(err)
		return nil, err
	}
	return op, nil
}

func (c *Client) awaitingCallback() bool {
	return c.state == StateAuthorizationRequested || c.state == StateAwaitingCallback
}

// acceptCode verifies the redirect's state and starts the exchange.
// Callers hold c.mu.
func (c *Client) acceptCode(ctx context.Context, cb Callback) (*Operation, error) {
	if c.states != nil {
		if err := c.verifyState(cb.State); err != nil {
			c.auditor.LogFailure(security.EventStateMismatch, c.cfg.ClientID, err.Error())
			return nil, newFlowError(ErrInvalidCallback, "callback", 0, err)
		}
	}

	c.state = StateExchangingCode
	c.auditor.LogCodeReceived(c.cfg.ClientID, cb.Code)
	c.logger.Info("Authorization code received", "client_id", c.cfg.ClientID)
	c.emit(func() {
		if r, ok := c.sink.(AuthorizationCodeReceiver); ok {
			r.AuthorizationCodeReceived(c)
		}
	})

	op := c.register(ctx, OperationExchange)
	c.exchangeOp = op
	c.wg.Add(1)
	go c.runExchange(op, cb.Code)
	return op, nil
}

func (c *Client) verifyState(got string) error {
	expected := c.issuedState
	c.issuedState = ""
	if got == "" || got != expected {
		return fmt.Errorf("%w: redirect state does not match the issued value", ErrStateMismatch)
	}
	if err := c.states.Redeem(got); err != nil {
		return fmt.Errorf("%w: %v", ErrStateMismatch, err)
	}
	return nil
}

func (c *Client) runExchange(op *Operation, code string) {
	defer c.wg.Done()
	tok, err := c.exchanger.ExchangeCode(op.ctx, code)

	c.mu.Lock()
	published := c.completeExchange(op, tok, err)
	c.mu.Unlock()

	if published {
		c.persist(op.ctx, tok)
	}
}

// completeExchange publishes an exchange result. Callers hold c.mu.
func (c *Client) completeExchange(op *Operation, tok *token.AccessToken, err error) bool {
	delete(c.pending, op.ID())
	if c.exchangeOp == op {
		c.exchangeOp = nil
	}

	if c.closed {
		op.finish(nil, ErrClientClosed)
		return false
	}
	if c.state != StateExchangingCode {
		// cancelled or superseded while the request was in flight
		op.finish(nil, fmt.Errorf("%w: exchange result discarded in state %s", ErrInvalidState, c.state))
		return false
	}

	ctx := op.ctx
	if err != nil {
		c.metrics.RecordCodeExchange(ctx, c.cfg.ClientID, false)
		c.auditor.LogFailure(security.EventCodeExchangeFailed, c.cfg.ClientID, err.Error())
		c.fail(err)
		op.finish(nil, err)
		return false
	}

	c.tok = tok
	c.lastErr = nil
	c.state = StateAuthorized
	c.metrics.RecordCodeExchange(ctx, c.cfg.ClientID, true)
	c.auditor.LogTokenIssued(c.cfg.ClientID, tok.AccessToken(), tok.CanRefresh())
	c.logger.Info("Access token received",
		"client_id", c.cfg.ClientID,
		"refreshable", tok.CanRefresh(),
		"operation_id", op.ID())
	c.emit(func() { c.sink.AccessTokenReceived(c) })
	op.finish(tok, nil)
	return true
}

// EnsureFreshToken returns the current token, refreshing it first when it
// has expired. Concurrent callers share one refresh. An expired token without
// a refresh token fails with ErrRefreshFailed and stays the current token.
func (c *Client) EnsureFreshToken(ctx context.Context) (*token.AccessToken, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}

	var op *Operation
	switch c.state {
	case StateRefreshing:
		op = c.refreshOp
	case StateAuthorized:
		if !c.tok.HasExpiredAt(c.now()) {
			tok := c.tok
			c.mu.Unlock()
			return tok, nil
		}
		var err error
		op, err = c.refreshLocked(ctx, c.tok)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
	default:
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: no token available (%s)", ErrInvalidState, state)
	}
	c.mu.Unlock()

	return op.Wait(ctx)
}

// RefreshAccessToken refreshes tok, or the current token when tok is nil,
// regardless of its expiry. The returned operation completes with the new
// token; AccessTokenRefreshed fires on success.
func (c *Client) RefreshAccessToken(ctx context.Context, tok *token.AccessToken) (*Operation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	switch c.state {
	case StateRefreshing:
		return c.refreshOp, nil
	case StateAuthorized:
	case StateIdle:
		if tok == nil {
			return nil, fmt.Errorf("%w: no token to refresh", ErrInvalidState)
		}
	default:
		return nil, fmt.Errorf("%w: cannot refresh in state %s", ErrInvalidState, c.state)
	}
	if tok == nil {
		tok = c.tok
	}
	return c.refreshLocked(ctx, tok)
}

// refreshLocked starts a refresh of tok. Callers hold c.mu.
func (c *Client) refreshLocked(ctx context.Context, tok *token.AccessToken) (*Operation, error) {
	if !tok.CanRefresh() {
		err := newFlowError(ErrRefreshFailed, "refresh", 0, errNoRefreshToken)
		c.metrics.RecordTokenRefresh(ctx, c.cfg.ClientID, false, false)
		c.auditor.LogFailure(security.EventRefreshFailed, c.cfg.ClientID, err.Error())
		c.logger.Warn("Token cannot be refreshed", "client_id", c.cfg.ClientID, "error", err)
		c.emitFailure(err)
		return nil, err
	}

	if c.state == StateIdle {
		c.tok = tok
	}
	c.state = StateRefreshing
	op := c.register(ctx, OperationRefresh)
	c.refreshOp = op
	c.wg.Add(1)
	go c.runRefresh(op, tok)
	return op, nil
}

func (c *Client) runRefresh(op *Operation, current *token.AccessToken) {
	defer c.wg.Done()
	next, err := c.exchanger.Refresh(op.ctx, current)

	c.mu.Lock()
	published := c.completeRefresh(op, current, next, err)
	c.mu.Unlock()

	if published {
		c.persist(op.ctx, next)
	}
}

// completeRefresh publishes a refresh result. Callers hold c.mu.
func (c *Client) completeRefresh(op *Operation, current, next *token.AccessToken, err error) bool {
	delete(c.pending, op.ID())
	if c.refreshOp == op {
		c.refreshOp = nil
	}

	if c.closed {
		op.finish(nil, ErrClientClosed)
		return false
	}
	if c.state != StateRefreshing {
		op.finish(nil, fmt.Errorf("%w: refresh result discarded in state %s", ErrInvalidState, c.state))
		return false
	}

	ctx := op.ctx
	if err != nil {
		c.metrics.RecordTokenRefresh(ctx, c.cfg.ClientID, false, false)
		c.auditor.LogFailure(security.EventRefreshFailed, c.cfg.ClientID, err.Error())
		// the expired token stays reachable through LastToken
		c.fail(err)
		op.finish(nil, err)
		return false
	}

	rotated := next.RefreshToken() != current.RefreshToken()
	c.tok = next
	c.lastErr = nil
	c.state = StateAuthorized
	c.metrics.RecordTokenRefresh(ctx, c.cfg.ClientID, true, rotated)
	c.auditor.LogTokenRefreshed(c.cfg.ClientID, next.AccessToken(), rotated)
	c.logger.Info("Access token refreshed",
		"client_id", c.cfg.ClientID,
		"rotated", rotated,
		"operation_id", op.ID())
	c.emit(func() { c.sink.AccessTokenRefreshed(c) })
	op.finish(next, nil)
	return true
}

// Cancel abandons the flow in progress. An in-flight exchange or refresh is
// cancelled and its result discarded. It reports whether anything was cancelled.
func (c *Client) Cancel(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	switch c.state {
	case StateAuthorizationRequested, StateAwaitingCallback, StateExchangingCode, StateRefreshing:
	default:
		return false
	}
	for _, op := range []*Operation{c.exchangeOp, c.refreshOp} {
		if op != nil {
			op.cancel()
		}
	}
	c.cancelLocked(ctx)
	return true
}

// cancelLocked enters StateCancelled. Callers hold c.mu.
func (c *Client) cancelLocked(ctx context.Context) {
	c.state = StateCancelled
	c.issuedState = ""
	c.metrics.RecordCancelled(ctx, c.cfg.ClientID)
	c.auditor.LogCancelled(c.cfg.ClientID)
	c.logger.Info("Authorization cancelled", "client_id", c.cfg.ClientID)
	c.emit(func() {
		if r, ok := c.sink.(CancellationReceiver); ok {
			r.AuthorizationCancelled(c)
		}
	})
}

// Restore loads the token saved by WithStore and makes it current. It is
// only allowed before any flow has started.
func (c *Client) Restore(ctx context.Context) (*token.AccessToken, error) {
	if c.store == nil {
		return nil, fmt.Errorf("no token store configured")
	}
	tok, err := c.store.Load(ctx, c.storeKey)
	if err != nil {
		return nil, fmt.Errorf("restoring token: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if c.state != StateIdle {
		return nil, fmt.Errorf("%w: cannot restore in state %s", ErrInvalidState, c.state)
	}
	c.tok = tok
	c.state = StateAuthorized
	c.auditor.LogEvent(security.Event{
		Type:     security.EventTokenRestored,
		ClientID: c.cfg.ClientID,
		Details:  map[string]any{"token_fingerprint": security.Fingerprint(tok.AccessToken())},
	})
	c.logger.Info("Access token restored", "client_id", c.cfg.ClientID, "expired", tok.HasExpiredAt(c.now()))
	return tok, nil
}

// Close tears the client down. Pending requests are cancelled, their
// completions dropped and no further events are delivered. It returns once
// every request goroutine has ended, so a token saved after an exchange or
// refresh is on the store when Close returns. Close is idempotent and safe
// to call from an event sink.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ops := make([]*Operation, 0, len(c.pending))
	for _, op := range c.pending {
		ops = append(ops, op)
	}
	c.mu.Unlock()

	for _, op := range ops {
		op.cancel()
	}
	if c.gauge != nil {
		if err := c.gauge.Unregister(); err != nil {
			c.logger.Warn("Failed to unregister pending operations gauge", "error", err)
		}
	}
	c.events.close()
	c.wg.Wait()
	return nil
}

// register tracks a new operation. Callers hold c.mu.
func (c *Client) register(ctx context.Context, kind OperationKind) *Operation {
	op := newOperation(ctx, kind, c.now())
	c.pending[op.ID()] = op
	return op
}

// fail enters StateFailed and reports err. Callers hold c.mu.
func (c *Client) fail(err error) {
	c.state = StateFailed
	c.lastErr = err
	c.issuedState = ""
	c.logger.Warn("Authorization flow failed", "client_id", c.cfg.ClientID, "error", err)
	c.emitFailure(err)
}

func (c *Client) emitFailure(err error) {
	c.emit(func() {
		if r, ok := c.sink.(FailureReceiver); ok {
			r.AuthorizationFailed(c, err)
		}
	})
}

// emit queues an event. Called with c.mu held, so events are ordered by the
// transitions that produced them.
func (c *Client) emit(fn func()) {
	c.events.enqueue(fn)
}

// persist saves tok when it is still the current token.
func (c *Client) persist(ctx context.Context, tok *token.AccessToken) {
	if c.store == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	if c.LastToken() != tok {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := c.store.Save(ctx, c.storeKey, tok); err != nil {
		c.logger.Warn("Failed to persist token", "client_id", c.cfg.ClientID, "error", err)
	}
}

// Forget deletes the persisted token and returns the client to StateIdle.
func (c *Client) Forget(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateExchangingCode || c.state == StateRefreshing {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot forget while %s", ErrInvalidState, c.state)
	}
	c.tok = nil
	c.lastErr = nil
	c.state = StateIdle
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Delete(ctx, c.storeKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("deleting stored token: %w", err)
	}
	return nil
}
