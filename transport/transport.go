package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/giantswarm/oauth-client/instrumentation"
)

const (
	// DefaultTimeout bounds a single token endpoint round trip
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodyBytes caps how much of a response body is read
	DefaultMaxBodyBytes int64 = 1 << 20
)

// ErrBodyTooLarge is returned when a response exceeds the configured body limit.
var ErrBodyTooLarge = errors.New("response body too large")

// Response is a completed HTTP exchange.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// ContentType returns the response Content-Type header.
func (r *Response) ContentType() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// Success reports whether the status is 2xx.
func (r *Response) Success() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Result is delivered once per request: either a Response or an Err.
type Result struct {
	Response *Response
	Err      error
}

// Transport performs a single POST with a form-encoded body.
// The returned channel receives exactly one Result and is then closed.
type Transport interface {
	PostForm(ctx context.Context, endpoint string, form url.Values) <-chan Result
}

// Func adapts a synchronous function to Transport. Each call runs on its own goroutine.
type Func func(ctx context.Context, endpoint string, form url.Values) (*Response, error)

// PostForm implements Transport.
func (f Func) PostForm(ctx context.Context, endpoint string, form url.Values) <-chan Result {
	return deliver(func() (*Response, error) { return f(ctx, endpoint, form) })
}

func deliver(fn func() (*Response, error)) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		resp, err := fn()
		ch <- Result{Response: resp, Err: err}
	}()
	return ch
}

// Config configures HTTPTransport.
type Config struct {
	// HTTPClient performs the requests. Defaults to a client with DefaultTimeout.
	HTTPClient *http.Client

	// RequestsPerSecond limits outbound token requests. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Defaults to 1 when limiting is enabled.
	Burst int

	// MaxBodyBytes caps the response body. Defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Debug logs request and response metadata at debug level. Bodies are never logged.
	Debug bool

	Logger          *slog.Logger
	Instrumentation *instrumentation.Instrumentation
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	client       *http.Client
	limiter      *rate.Limiter
	maxBodyBytes int64
	debug        bool
	logger       *slog.Logger
	tracer       trace.Tracer
	metrics      *instrumentation.Metrics
}

// NewHTTP creates an HTTPTransport.
func NewHTTP(cfg Config) *HTTPTransport {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Instrumentation == nil {
		cfg.Instrumentation = instrumentation.Noop()
	}

	t := &HTTPTransport{
		client:       cfg.HTTPClient,
		maxBodyBytes: cfg.MaxBodyBytes,
		debug:        cfg.Debug,
		logger:       cfg.Logger,
		tracer:       cfg.Instrumentation.Tracer("transport"),
		metrics:      cfg.Instrumentation.Metrics(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return t
}

// PostForm implements Transport.
func (t *HTTPTransport) PostForm(ctx context.Context, endpoint string, form url.Values) <-chan Result {
	return deliver(func() (*Response, error) { return t.Do(ctx, endpoint, form) })
}

// Do performs the request synchronously.
func (t *HTTPTransport) Do(ctx context.Context, endpoint string, form url.Values) (*Response, error) {
	grantType := form.Get("grant_type")

	ctx, span := t.tracer.Start(ctx, "oauth.token_request")
	defer span.End()
	instrumentation.AddGrantAttributes(span, form.Get("client_id"), grantType)

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			instrumentation.RecordError(span, err)
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := t.client.Do(req)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		t.metrics.RecordTokenRequest(ctx, grantType, 0, elapsed, err)
		instrumentation.RecordError(span, err)
		if t.debug {
			t.logger.Debug("Token request failed", "endpoint", endpoint, "grant_type", grantType, "error", err)
		}
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	instrumentation.AddHTTPAttributes(span, http.MethodPost, endpoint, httpResp.StatusCode)
	t.metrics.RecordTokenRequest(ctx, grantType, httpResp.StatusCode, elapsed, nil)

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, t.maxBodyBytes+1))
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if int64(len(body)) > t.maxBodyBytes {
		instrumentation.RecordError(span, ErrBodyTooLarge)
		return nil, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, t.maxBodyBytes)
	}

	if t.debug {
		t.logger.Debug("Token request completed",
			"endpoint", endpoint,
			"grant_type", grantType,
			"status", httpResp.StatusCode,
			"content_type", httpResp.Header.Get("Content-Type"),
			"body_bytes", len(body),
			"duration_ms", elapsed)
	}
	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		instrumentation.SetSpanSuccess(span)
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   body,
	}, nil
}
