package rules

import (
	"github.com/haukened/focusgate/internal/focus/domain"
	"github.com/haukened/focusgate/internal/focus/pattern"
)

// Skipped is an entry that produced no rule.
type Skipped struct {
	Pattern string
	Err     error
}

// BuildRules compiles lists into a dense rule list: allow entries take ids
// 1..a at the allow priority, block entries continue from a+1 at the block
// priority and redirect to interstitialURL. When the interstitial can take
// the origin parameter, block rules consume the whole URL and redirect via a
// regexSubstitution that passes it along. Blank entries are ignored and
// malformed entries are skipped without consuming an id.
func BuildRules(lists domain.Lists, c pattern.Compiler, interstitialURL string) ([]domain.Rule, []Skipped) {
	if c == nil {
		c = pattern.Uncached
	}
	out := make([]domain.Rule, 0, len(lists.Allow)+len(lists.Block))
	var skipped []Skipped

	redirect := &domain.RuleRedirect{URL: interstitialURL}
	wholeURL := false
	if sub := domain.InterstitialSubstitution(interstitialURL); sub != "" {
		redirect = &domain.RuleRedirect{RegexSubstitution: sub}
		wholeURL = true
	}

	add := func(entry string, priority int, action domain.RuleAction, consumeAll bool) {
		m := c.Compile(entry)
		if m == nil {
			return
		}
		if !m.Valid() {
			skipped = append(skipped, Skipped{Pattern: m.Pattern(), Err: m.Err()})
			return
		}
		filter := m.Filter()
		if consumeAll {
			// substitution replaces only the matched text
			filter += ".*"
		}
		out = append(out, domain.Rule{
			ID:       len(out) + 1,
			Priority: priority,
			Action:   action,
			Condition: domain.RuleCondition{
				RegexFilter:   filter,
				ResourceTypes: []string{domain.ResourceMainFrame},
			},
			Pattern: m.Pattern(),
		})
	}

	for _, e := range lists.Allow {
		add(e, domain.PriorityAllow, domain.RuleAction{Type: domain.RuleActionAllow}, false)
	}
	for _, e := range lists.Block {
		add(e, domain.PriorityBlock, domain.RuleAction{Type: domain.RuleActionRedirect, Redirect: redirect}, wholeURL)
	}
	return out, skipped
}
