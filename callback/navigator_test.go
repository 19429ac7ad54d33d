package callback

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os/exec"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itoa(i int) string { return strconv.Itoa(i) }

type failingNavigator struct{ calls int }

func (f *failingNavigator) Navigate(context.Context, *url.URL) error {
	f.calls++
	return errors.New("no browser")
}

func TestPrintNavigator(t *testing.T) {
	var buf bytes.Buffer
	u, _ := url.Parse("https://auth.example.com/authorize?client_id=id1")

	require.NoError(t, (&PrintNavigator{W: &buf}).Navigate(context.Background(), u))
	assert.Contains(t, buf.String(), "https://auth.example.com/authorize?client_id=id1")
}

func TestCommandNavigator(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true(1) not available")
	}
	u, _ := url.Parse("https://auth.example.com/authorize")

	assert.NoError(t, (&CommandNavigator{Command: "true"}).Navigate(context.Background(), u))
	assert.Error(t, (&CommandNavigator{Command: "false"}).Navigate(context.Background(), u))
	assert.Error(t, (&CommandNavigator{}).Navigate(context.Background(), u))
}

func TestBrowserNavigator(t *testing.T) {
	assert.NotEmpty(t, BrowserNavigator().Command)
}

func TestFallbackNavigator(t *testing.T) {
	u, _ := url.Parse("https://auth.example.com/authorize")
	var buf bytes.Buffer
	primary := &failingNavigator{}

	nav := &FallbackNavigator{Primary: primary, Secondary: &PrintNavigator{W: &buf}}
	require.NoError(t, nav.Navigate(context.Background(), u))
	assert.Equal(t, 1, primary.calls)
	assert.Contains(t, buf.String(), u.String())

	both := &FallbackNavigator{Primary: &failingNavigator{}, Secondary: &failingNavigator{}}
	assert.Error(t, both.Navigate(context.Background(), u))
}
