package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	oauth "github.com/giantswarm/oauth-client"
	"github.com/giantswarm/oauth-client/security"
)

// DefaultShutdownTimeout bounds Close
const DefaultShutdownTimeout = 5 * time.Second

// NavigationHandler decides what happens to a navigation. *oauth.Client
// implements it.
type NavigationHandler interface {
	HandleNavigation(ctx context.Context, u *url.URL) oauth.Decision
}

// Config holds loopback listener settings.
type Config struct {
	// RedirectURL is the client's redirect URL. Its host and port are listened on.
	RedirectURL string

	// Page is served for absorbed navigations. Defaults to a short HTML page.
	Page string

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

const defaultPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Authorization</title></head>
<body><p>Authorization received. You can close this window and return to the application.</p></body>
</html>`

// Server is the loopback redirect listener.
type Server struct {
	echo    *echo.Echo
	handler NavigationHandler
	page    string
	logger  *slog.Logger
	address string

	mu       sync.Mutex
	listener net.Listener
	served   chan error
}

// New creates a Server for h. The redirect URL must be an http URL on a
// loopback address.
func New(cfg Config, h NavigationHandler) (*Server, error) {
	if h == nil {
		return nil, errors.New("navigation handler is required")
	}
	address, err := listenAddress(cfg.RedirectURL)
	if err != nil {
		return nil, err
	}

	s := &Server{
		echo:    echo.New(),
		handler: h,
		page:    cfg.Page,
		logger:  cfg.Logger,
		address: address,
	}
	if s.page == "" {
		s.page = defaultPage
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Any("/*", s.handle)
	return s, nil
}

// listenAddress returns host:port of a loopback http redirect URL.
func listenAddress(redirectURL string) (string, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	if u.Scheme != "http" {
		return "", fmt.Errorf("loopback redirect URL must use http, got %q", u.Scheme)
	}
	host := u.Hostname()
	if host != "localhost" {
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			return "", fmt.Errorf("redirect URL host %q is not a loopback address", host)
		}
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}
	return net.JoinHostPort(host, port), nil
}

// Start listens and serves in the background. It returns once the listener
// is bound.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("callback server already started")
	}

	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.listener = ln
	s.echo.Listener = ln
	s.served = make(chan error, 1)

	go func() {
		err := s.echo.Start(s.address)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.served <- err
	}()

	s.logger.Info("Callback server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops the server, waiting up to DefaultShutdownTimeout for requests
// in progress.
func (s *Server) Close() error {
	s.mu.Lock()
	served := s.served
	s.mu.Unlock()
	if served == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down callback server: %w", err)
	}
	return <-served
}

func (s *Server) handle(c echo.Context) error {
	req := c.Request()
	u := &url.URL{
		Scheme:   "http",
		Host:     req.Host,
		Path:     req.URL.Path,
		RawPath:  req.URL.RawPath,
		RawQuery: req.URL.RawQuery,
	}

	decision := s.handler.HandleNavigation(req.Context(), u)
	s.logger.Debug("Callback navigation",
		"method", req.Method,
		"path", req.URL.Path,
		"decision", decision.String())

	if decision != oauth.Absorb {
		return echo.NewHTTPError(http.StatusNotFound)
	}

	security.SetCallbackPageHeaders(c.Response().Header())
	if strings.Contains(req.Header.Get(echo.HeaderAccept), "text/html") || req.Header.Get(echo.HeaderAccept) == "" {
		return c.HTML(http.StatusOK, s.page)
	}
	return c.String(http.StatusOK, "authorization received\n")
}
