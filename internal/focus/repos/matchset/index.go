// Package matchset evaluates URLs against the compiled allow and block lists.
package matchset

import (
	"fmt"

	"github.com/haukened/focusgate/internal/focus/common/utils"
	"github.com/haukened/focusgate/internal/focus/domain"
	"github.com/haukened/focusgate/internal/focus/pattern"
)

// ListName labels which user list an entry came from.
type ListName string

const (
	ListAllow ListName = "allow"
	ListBlock ListName = "block"
)

// Invalid describes an entry dropped because it could not be compiled.
type Invalid struct {
	List    ListName
	Pattern string
	Err     error
}

// Index is an immutable compiled view of a domain.Lists snapshot.
// Decisions follow allow-over-block precedence.
type Index struct {
	allow    []*pattern.Matcher
	block    []*pattern.Matcher
	invalid  []Invalid
	warnings []string
	bloom    HostFilter // nil: prefilter bypassed
}

// Options configures Build. Compiler defaults to pattern.Uncached; a nil
// Factory disables the host prefilter.
type Options struct {
	Compiler pattern.Compiler
	Factory  HostFilterFactory
	FPRate   float64
}

// Build compiles lists into an Index. Blank entries are ignored and
// malformed entries are recorded in Invalid; neither aborts the build.
func Build(lists domain.Lists, opts Options) *Index {
	c := opts.Compiler
	if c == nil {
		c = pattern.Uncached
	}
	ix := &Index{}
	ix.allow = ix.compileAll(c, ListAllow, lists.Allow)
	ix.block = ix.compileAll(c, ListBlock, lists.Block)
	if opts.Factory != nil {
		ix.bloom = buildBloom(opts.Factory, opts.FPRate, ix.allow, ix.block)
	}
	return ix
}

func (ix *Index) compileAll(c pattern.Compiler, list ListName, entries []string) []*pattern.Matcher {
	out := make([]*pattern.Matcher, 0, len(entries))
	for _, e := range entries {
		m := c.Compile(e)
		if m == nil {
			continue
		}
		if !m.Valid() {
			ix.invalid = append(ix.invalid, Invalid{List: list, Pattern: m.Pattern(), Err: m.Err()})
			continue
		}
		if m.Kind() == pattern.KindHost && utils.IsPublicSuffix(m.Host()) {
			ix.warnings = append(ix.warnings, fmt.Sprintf("%s entry %q covers the whole public suffix %q", list, m.Pattern(), m.Host()))
		}
		out = append(out, m)
	}
	return out
}

// buildBloom returns nil when any matcher lacks an exact host, since such an
// entry can match hosts the filter never saw.
func buildBloom(f HostFilterFactory, fpRate float64, sets ...[]*pattern.Matcher) HostFilter {
	var hosts []string
	for _, set := range sets {
		for _, m := range set {
			if m.Host() == "" {
				return nil
			}
			hosts = append(hosts, m.Host())
		}
	}
	return f.Build(hosts, fpRate)
}

// Decide evaluates rawURL. Allow entries are consulted first and win.
func (ix *Index) Decide(rawURL string) domain.Decision {
	if ix == nil || rawURL == "" {
		return domain.NoDecision()
	}
	if !ix.mightMatch(rawURL) {
		return domain.NoDecision()
	}
	for _, m := range ix.allow {
		if m.Matches(rawURL) {
			return domain.Decision{Verdict: domain.VerdictAllow, Pattern: m.Pattern()}
		}
	}
	for _, m := range ix.block {
		if m.Matches(rawURL) {
			return domain.Decision{Verdict: domain.VerdictBlock, Pattern: m.Pattern()}
		}
	}
	return domain.NoDecision()
}

// mightMatch returns false only when the URL's host and all of its parent
// domains are definitely absent from the filter. Unparsable URLs fall through
// to full evaluation so the prefilter can never change a decision.
func (ix *Index) mightMatch(rawURL string) bool {
	if ix.bloom == nil {
		return true
	}
	host, ok := utils.HostOf(rawURL)
	if !ok {
		return true
	}
	for _, d := range utils.ParentDomains(host) {
		if ix.bloom.MayContain(d) {
			return true
		}
	}
	return false
}

// Allow returns the valid compiled allow matchers in list order.
func (ix *Index) Allow() []*pattern.Matcher { return ix.allow }

// Block returns the valid compiled block matchers in list order.
func (ix *Index) Block() []*pattern.Matcher { return ix.block }

// Invalid returns the entries dropped during Build.
func (ix *Index) Invalid() []Invalid { return ix.invalid }

// Warnings returns human-readable notes about suspicious entries.
func (ix *Index) Warnings() []string { return ix.warnings }

// Prefiltered reports whether the bloom host prefilter is active.
func (ix *Index) Prefiltered() bool { return ix.bloom != nil }
