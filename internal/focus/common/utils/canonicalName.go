package utils

import (
	"net/url"
	"strings"
)

// CanonicalHost returns a host name in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - No trailing dots, so "example.com." and "example.com" share one key
func CanonicalHost(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// HostOf extracts the canonical host of an absolute http(s) URL.
// It reports false for unparsable URLs, other schemes, or an empty host.
func HostOf(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", false
	}
	host := CanonicalHost(u.Hostname())
	if host == "" {
		return "", false
	}
	return host, true
}

// ParentDomains returns host followed by each parent domain, most specific
// first: "a.b.example.com" → [a.b.example.com b.example.com example.com com].
func ParentDomains(host string) []string {
	host = CanonicalHost(host)
	if host == "" {
		return nil
	}
	out := []string{host}
	for {
		i := strings.IndexByte(host, '.')
		if i < 0 || i == len(host)-1 {
			return out
		}
		host = host[i+1:]
		out = append(out, host)
	}
}
