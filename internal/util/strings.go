package util

import (
	"net"
	"net/url"
	"strings"
	"unicode/utf8"
)

// CredentialPrefixLen is how many characters of a code or token may be logged.
const CredentialPrefixLen = 4

// CredentialPrefix returns the loggable prefix of an authorization code or
// token. Values shorter than twice the prefix are not logged at all, since
// the prefix would give most of them away. The cut never splits a rune.
func CredentialPrefix(s string) string {
	if utf8.RuneCountInString(s) < 2*CredentialPrefixLen {
		return ""
	}
	n := 0
	for i := range s {
		if n == CredentialPrefixLen {
			return s[:i]
		}
		n++
	}
	return s
}

// defaultPorts are dropped by CanonicalHost.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// CanonicalHost returns the lower-cased host of u with the scheme's default
// port removed, so http://localhost:80 and http://localhost name the same
// listener.
func CanonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Host)
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if defaultPorts[strings.ToLower(u.Scheme)] == port {
		if strings.Contains(h, ":") {
			return "[" + h + "]"
		}
		return h
	}
	return host
}

// NormalizeIssuer returns the form an OIDC issuer is cached and compared
// under: lower-case scheme and host, no default port, no trailing slash.
// Unparseable input only loses its trailing slashes.
//
//	NormalizeIssuer("HTTPS://Auth.Example.com:443/dex/") // "https://auth.example.com/dex"
func NormalizeIssuer(issuer string) string {
	u, err := url.Parse(issuer)
	if err != nil || u.Host == "" {
		return strings.TrimRight(issuer, "/")
	}
	out := url.URL{
		Scheme:  strings.ToLower(u.Scheme),
		Host:    CanonicalHost(u),
		Path:    strings.TrimRight(u.Path, "/"),
		RawPath: strings.TrimRight(u.RawPath, "/"),
	}
	return out.String()
}
