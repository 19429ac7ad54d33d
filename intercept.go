package oauth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/giantswarm/oauth-client/internal/util"
)

// CallbackKind classifies a navigation.
type CallbackKind int

const (
	// CallbackUnrelated is a navigation outside the OAuth flow; it proceeds untouched.
	CallbackUnrelated CallbackKind = iota
	// CallbackAuthorizationCode is a redirect carrying an authorization code.
	CallbackAuthorizationCode
	// CallbackCancelled is the cancel URL or an access_denied redirect.
	CallbackCancelled
	// CallbackInvalid is a redirect carrying neither a code nor a cancellation.
	CallbackInvalid
)

func (k CallbackKind) String() string {
	switch k {
	case CallbackUnrelated:
		return "unrelated"
	case CallbackAuthorizationCode:
		return "authorization_code"
	case CallbackCancelled:
		return "cancelled"
	case CallbackInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("CallbackKind(%d)", int(k))
	}
}

// Callback is the result of classifying a navigation.
type Callback struct {
	Kind CallbackKind

	// Code is set for CallbackAuthorizationCode.
	Code string

	// State is the state parameter the redirect carried, if any.
	State string

	// Err explains CallbackInvalid, and carries the *OAuthError of an
	// access_denied cancellation.
	Err error
}

var errNoCode = errors.New("redirect carries no authorization code")

// Classify decides whether u is the configured redirect URL, the cancel URL
// or unrelated to the flow. A URL matches a configured one when scheme and
// host agree and its path equals, or is nested below, the configured path.
// When both match, the longer configured path wins.
func Classify(u *url.URL, cfg *Config) Callback {
	if u == nil || cfg == nil {
		return Callback{Kind: CallbackUnrelated}
	}
	nav := targetOf(u)

	redirectLen, redirectOK := matchLength(cfg.RedirectURL, nav)
	cancelLen, cancelOK := matchLength(cfg.CancelURL, nav)

	switch {
	case cancelOK && (!redirectOK || cancelLen > redirectLen):
		return Callback{Kind: CallbackCancelled, State: queryOf(u).Get(ParamState)}
	case redirectOK:
		return classifyRedirect(queryOf(u))
	default:
		return Callback{Kind: CallbackUnrelated}
	}
}

func classifyRedirect(q url.Values) Callback {
	state := q.Get(ParamState)

	if code := q.Get(ParamCode); code != "" {
		return Callback{Kind: CallbackAuthorizationCode, Code: code, State: state}
	}

	if code := q.Get(ParamError); code != "" {
		oerr := &OAuthError{
			Code:        code,
			Description: q.Get(ParamErrorDesc),
			URI:         q.Get(ParamErrorURI),
		}
		if code == ErrorCodeAccessDenied {
			return Callback{Kind: CallbackCancelled, State: state, Err: oerr}
		}
		return Callback{
			Kind:  CallbackInvalid,
			State: state,
			Err:   newFlowError(ErrInvalidCallback, "callback", 0, oerr),
		}
	}

	return Callback{
		Kind:  CallbackInvalid,
		State: state,
		Err:   newFlowError(ErrInvalidCallback, "callback", 0, errNoCode),
	}
}

// target is the part of a URL that Classify compares.
type target struct {
	scheme string
	host   string
	path   string
}

func parseTarget(raw string) (target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return target{}, err
	}
	return targetOf(u), nil
}

func targetOf(u *url.URL) target {
	path := u.Path
	if u.Opaque != "" {
		// app:cb style URLs carry everything after the scheme in Opaque
		path = u.Opaque
	}
	return target{
		scheme: strings.ToLower(u.Scheme),
		host:   util.CanonicalHost(u),
		path:   strings.TrimRight(path, "/"),
	}
}

// queryOf returns the query of u. Opaque URLs keep it in RawQuery too.
func queryOf(u *url.URL) url.Values {
	q, _ := url.ParseQuery(u.RawQuery)
	return q
}

// matchLength reports whether nav falls under the configured URL and how
// specific the match is.
func matchLength(configured string, nav target) (int, bool) {
	if configured == "" {
		return 0, false
	}
	want, err := parseTarget(configured)
	if err != nil {
		return 0, false
	}
	if want.scheme != nav.scheme || want.host != nav.host {
		return 0, false
	}
	if nav.path == want.path || strings.HasPrefix(nav.path, want.path+"/") {
		return len(want.path), true
	}
	return 0, false
}
