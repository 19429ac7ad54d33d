package security

import "net/http"

// SetCallbackPageHeaders sets the headers served with the page a browser
// lands on after the redirect. The page URL carries the authorization code,
// so it must not be cached, framed or leaked through Referer.
func SetCallbackPageHeaders(h http.Header) {
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")

	// custom pages may carry inline styles, nothing else
	h.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'")
	h.Set("Referrer-Policy", "no-referrer")

	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	h.Set("Pragma", "no-cache")
}
