package domain

import (
	"net/url"
	"strings"
)

// OriginParam is the interstitial query parameter carrying the blocked URL.
// It is always the last parameter and its value is the raw URL, so the page
// reads everything after "from=" verbatim.
const OriginParam = "from"

// InterstitialTarget returns the interstitial address for a blocked origin.
// Bases that already carry a query or fragment are returned unchanged.
func InterstitialTarget(base, origin string) string {
	if origin == "" || strings.ContainsAny(base, "?#") {
		return base
	}
	return base + "?" + OriginParam + "=" + origin
}

// InterstitialSubstitution returns the regexSubstitution that sends a whole
// matched URL to the interstitial, or "" when base cannot take the parameter.
// The rule's regexFilter must consume the entire URL for \0 to be the origin.
func InterstitialSubstitution(base string) string {
	if base == "" || strings.ContainsAny(base, "?#") {
		return ""
	}
	return base + "?" + OriginParam + `=\0`
}

// InterstitialOrigin extracts the blocked URL from the interstitial's raw
// query, or "" when none was passed.
func InterstitialOrigin(rawQuery string) string {
	prefix := OriginParam + "="
	if !strings.HasPrefix(rawQuery, prefix) {
		return ""
	}
	return rawQuery[len(prefix):]
}

// IsInterstitialURL reports whether candidate is the interstitial page at
// base. Scheme, host and path must match; query and fragment are ignored.
func IsInterstitialURL(base, candidate string) bool {
	if base == "" || candidate == "" {
		return false
	}
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	c, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return strings.EqualFold(b.Scheme, c.Scheme) &&
		strings.EqualFold(b.Host, c.Host) &&
		cleanPath(b.Path) == cleanPath(c.Path)
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
