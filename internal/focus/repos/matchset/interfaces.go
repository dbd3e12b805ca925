package matchset

// HostFilter answers "might this exact host appear in a pattern?".
// False means definitely not; true means run the matchers.
type HostFilter interface {
	MayContain(host string) bool
}

// HostFilterFactory builds an immutable filter over a fixed host set.
type HostFilterFactory interface {
	Build(hosts []string, fpRate float64) HostFilter
}
