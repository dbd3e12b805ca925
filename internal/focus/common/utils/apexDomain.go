package utils

import "golang.org/x/net/publicsuffix"

// GetApexDomain returns the registrable domain (eTLD+1) of name, falling back
// to the canonical name when the public suffix list cannot classify it.
func GetApexDomain(name string) string {
	name = CanonicalHost(name)
	apexDomain, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		apexDomain = name
	}
	return apexDomain
}

// IsPublicSuffix reports whether name is itself a public suffix such as
// "com" or "co.uk". Only ICANN-managed suffixes count; private suffixes like
// "github.io" are deliberately excluded so user sites under them stay valid
// blocking targets.
func IsPublicSuffix(name string) bool {
	name = CanonicalHost(name)
	if name == "" {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(name)
	return icann && suffix == name
}
