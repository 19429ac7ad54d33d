package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	oauth "github.com/giantswarm/oauth-client"
	"github.com/giantswarm/oauth-client/callback"
	"github.com/giantswarm/oauth-client/token"
)

var errCancelled = errors.New("authorization cancelled")

var (
	loginTimeout time.Duration
	noBrowser    bool
	loginParams  map[string]string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize in the browser and store the issued token",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		tok, err := login(ctx, s, cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in, %s stored under %q\n", tok, s.key)
		return nil
	},
}

func init() {
	flags := loginCmd.Flags()
	flags.DurationVar(&loginTimeout, "timeout", 5*time.Minute, "how long to wait for the redirect")
	flags.BoolVar(&noBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")
	flags.StringToStringVar(&loginParams, "param", nil, "extra authorization request parameters, e.g. --param prompt=consent")
}

// outcome receives the first terminal flow event.
type outcome chan error

func (o outcome) send(err error) {
	select {
	case o <- err:
	default:
	}
}

func login(ctx context.Context, s *session, cmd *cobra.Command) (*token.AccessToken, error) {
	done := make(outcome, 1)
	client, err := s.newClient(oauth.SinkFuncs{
		OnAuthorizationCodeReceived: func(*oauth.Client) {
			slog.Info("Authorization code received, exchanging")
		},
		OnAccessTokenReceived:    func(*oauth.Client) { done.send(nil) },
		OnAuthorizationCancelled: func(*oauth.Client) { done.send(errCancelled) },
		OnAuthorizationFailed:    func(_ *oauth.Client, err error) { done.send(err) },
	})
	if err != nil {
		return nil, err
	}
	// Close before the session: it waits for the token to be saved.
	defer func() { _ = client.Close() }()

	srv, err := callback.New(callback.Config{RedirectURL: s.cfg.RedirectURL}, client)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(); err != nil {
		return nil, err
	}
	defer func() { _ = srv.Close() }()

	var nav oauth.Navigator = &callback.PrintNavigator{W: cmd.ErrOrStderr()}
	if !noBrowser {
		nav = &callback.FallbackNavigator{Primary: callback.BrowserNavigator(), Secondary: nav}
	}
	if err := client.AuthorizeUsing(ctx, nav, s.preset.ExtraParams(loginParams)); err != nil {
		return nil, err
	}

	timer := time.NewTimer(loginTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
	case <-timer.C:
		client.Cancel(ctx)
		return nil, fmt.Errorf("no redirect received within %s", loginTimeout)
	case <-ctx.Done():
		client.Cancel(context.WithoutCancel(ctx))
		return nil, ctx.Err()
	}

	tok := client.AccessToken()
	if tok == nil {
		return nil, fmt.Errorf("flow ended in state %s", client.State())
	}
	return tok, nil
}
