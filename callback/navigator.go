package callback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"runtime"

	oauth "github.com/giantswarm/oauth-client"
)

var (
	_ oauth.Navigator = (*PrintNavigator)(nil)
	_ oauth.Navigator = (*CommandNavigator)(nil)
)

// PrintNavigator writes the authorization URL for the user to open.
type PrintNavigator struct {
	W io.Writer
}

// Navigate implements oauth.Navigator.
func (p *PrintNavigator) Navigate(_ context.Context, u *url.URL) error {
	_, err := fmt.Fprintf(p.W, "Open the following URL in your browser to authorize:\n\n  %s\n\n", u.String())
	return err
}

// CommandNavigator opens the authorization URL by running Command with the
// URL appended to Args.
type CommandNavigator struct {
	Command string
	Args    []string
}

// BrowserNavigator returns a CommandNavigator for the platform's URL opener.
func BrowserNavigator() *CommandNavigator {
	switch runtime.GOOS {
	case "darwin":
		return &CommandNavigator{Command: "open"}
	case "windows":
		return &CommandNavigator{Command: "rundll32", Args: []string{"url.dll,FileProtocolHandler"}}
	default:
		return &CommandNavigator{Command: "xdg-open"}
	}
}

// Navigate implements oauth.Navigator. It returns once the opener exited.
func (n *CommandNavigator) Navigate(ctx context.Context, u *url.URL) error {
	if n.Command == "" {
		return errors.New("no opener command configured")
	}
	args := append(append([]string(nil), n.Args...), u.String())
	cmd := exec.CommandContext(ctx, n.Command, args...) //nolint:gosec // operator configured opener
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", n.Command, err, out)
	}
	return nil
}

// FallbackNavigator tries Primary and falls back to Secondary when it fails.
type FallbackNavigator struct {
	Primary   oauth.Navigator
	Secondary oauth.Navigator
}

// Navigate implements oauth.Navigator.
func (f *FallbackNavigator) Navigate(ctx context.Context, u *url.URL) error {
	err := f.Primary.Navigate(ctx, u)
	if err == nil {
		return nil
	}
	if serr := f.Secondary.Navigate(ctx, u); serr != nil {
		return errors.Join(err, serr)
	}
	return nil
}
