// Package oidc discovers the endpoints of an OpenID Connect provider from its
// issuer URL.
//
// Discovery fetches /.well-known/openid-configuration, refuses issuers that
// are not HTTPS or that resolve to loopback, private or link-local literal
// addresses, requires every discovered endpoint to be HTTPS, and checks that
// the document names the issuer it was fetched from. Documents are cached per
// issuer for a configurable TTL.
//
//	dc := oidc.NewDiscoveryClient(nil, time.Hour, logger)
//	preset, err := dc.Preset(ctx, "https://accounts.example.com")
//	if err != nil {
//	    return err
//	}
//	preset.Apply(cfg)
package oidc
