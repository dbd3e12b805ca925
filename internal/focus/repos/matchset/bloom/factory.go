// Package bloom provides the bloom-filter host prefilter for matchset.
package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/focusgate/internal/focus/repos/matchset"
)

type factory struct{}

// NewFactory returns a matchset.HostFilterFactory backed by bits-and-blooms.
func NewFactory() matchset.HostFilterFactory { return factory{} }

// Build sizes a filter for the distinct hosts at fpRate and adds them all.
func (factory) Build(hosts []string, fpRate float64) matchset.HostFilter {
	seen := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		seen[h] = struct{}{}
	}
	bf := bitsbloom.New(params(len(seen), fpRate))
	for h := range seen {
		bf.AddString(h)
	}
	return &hostFilter{bf: bf}
}
