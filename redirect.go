package auth

import (
	"net/url"
	"strings"
)

// DefaultRedirectPath is where sign-in lands when the requested target is
// not on our origin.
const DefaultRedirectPath = "/profile"

// ResolveRedirect returns the post sign-in target for requested.
// Paths starting with "/" are joined to origin, absolute URLs on the same
// origin are returned unchanged and anything else falls back to
// origin + DefaultRedirectPath.
func ResolveRedirect(requested, origin string) string {
	base := strings.TrimSuffix(origin, "/")

	if strings.HasPrefix(requested, "/") {
		return base + requested
	}

	if target, err := url.Parse(requested); err == nil && target.IsAbs() {
		if want, err := url.Parse(base); err == nil && sameOrigin(target, want) {
			return requested
		}
	}

	return base + DefaultRedirectPath
}

func sameOrigin(a, b *url.URL) bool {
	if a.Host == "" || b.Host == "" {
		return false
	}
	return originOf(a) == originOf(b)
}

func originOf(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()

	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host
}
