package testutil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

// MockTime provides a controllable time source for deterministic testing.
// Safe for concurrent use.
type MockTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// GenerateRandomString generates a random URL-safe string of the given length
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

// TokenResponse is a scripted token endpoint reply.
type TokenResponse struct {
	Status      int
	ContentType string
	Body        string
	// Delay holds the response back, e.g. to observe in-flight state.
	Delay time.Duration
	// Release, when set, holds the response until the channel is closed.
	Release <-chan struct{}
}

// JSON returns a 200 application/json reply.
func JSON(body string) TokenResponse {
	return TokenResponse{Status: http.StatusOK, ContentType: "application/json", Body: body}
}

// TokenServer is an httptest token endpoint that records every request form
// and answers with queued responses. When the queue is empty the last
// response is repeated.
type TokenServer struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []url.Values
	responses []TokenResponse
	last      TokenResponse
}

// NewTokenServer starts a token endpoint. It is closed when the test ends.
func NewTokenServer(t *testing.T, responses ...TokenResponse) *TokenServer {
	t.Helper()
	ts := &TokenServer{
		responses: responses,
		last:      TokenResponse{Status: http.StatusInternalServerError},
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.Close)
	return ts
}

// Enqueue appends responses.
func (ts *TokenServer) Enqueue(responses ...TokenResponse) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.responses = append(ts.responses, responses...)
}

// Requests returns the forms received so far.
func (ts *TokenServer) Requests() []url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]url.Values, len(ts.requests))
	copy(out, ts.requests)
	return out
}

// RequestCount returns how many requests were received.
func (ts *TokenServer) RequestCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.requests)
}

func (ts *TokenServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))

	ts.mu.Lock()
	ts.requests = append(ts.requests, form)
	resp := ts.last
	if len(ts.responses) > 0 {
		resp = ts.responses[0]
		ts.responses = ts.responses[1:]
		ts.last = resp
	}
	ts.mu.Unlock()

	if resp.Release != nil {
		select {
		case <-resp.Release:
		case <-r.Context().Done():
			return
		}
	}
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp.Body)
}

// Eventually polls cond until it holds or the timeout passes.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// TLSHost is the host name the certificate of an httptest TLS server is
// valid for.
const TLSHost = "example.com"

// NewTLSHostServer starts an httptest TLS server reachable as
// https://example.com through the returned client, so code that refuses
// loopback addresses can be tested against it. The server is closed when the
// test ends.
func NewTLSHostServer(t *testing.T, handler http.Handler) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)

	client := srv.Client()
	tr := client.Transport.(*http.Transport).Clone()
	addr := srv.Listener.Addr().String()
	tr.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, addr)
	}
	client.Transport = tr
	return srv, client
}
