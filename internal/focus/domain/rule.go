package domain

import "fmt"

// MaxInstalledRules is the ceiling on the declarative rule set size.
const MaxInstalledRules = 1000

// Rule priorities. Allow rules always outrank block rules so an allow entry
// overrides any block entry matching the same request.
const (
	PriorityBlock = 1
	PriorityAllow = 2
)

// ResourceMainFrame restricts a rule to top-level document requests.
const ResourceMainFrame = "main_frame"

// RuleActionType is the declarative action a rule applies.
type RuleActionType string

const (
	RuleActionAllow    RuleActionType = "allow"
	RuleActionRedirect RuleActionType = "redirect"
)

// RuleRedirect carries the redirect target for RuleActionRedirect. Exactly
// one of URL and RegexSubstitution is set.
type RuleRedirect struct {
	URL               string `json:"url,omitempty"`
	RegexSubstitution string `json:"regexSubstitution,omitempty"`
}

// RuleAction describes what happens when a rule matches.
type RuleAction struct {
	Type     RuleActionType `json:"type"`
	Redirect *RuleRedirect  `json:"redirect,omitempty"`
}

// RuleCondition selects the requests a rule applies to.
type RuleCondition struct {
	RegexFilter              string   `json:"regexFilter"`
	IsURLFilterCaseSensitive bool     `json:"isUrlFilterCaseSensitive"`
	ResourceTypes            []string `json:"resourceTypes"`
}

// Rule is one declarative navigation rule as installed in the browser.
type Rule struct {
	ID        int           `json:"id"`
	Priority  int           `json:"priority"`
	Action    RuleAction    `json:"action"`
	Condition RuleCondition `json:"condition"`
	// Pattern is the user entry the rule was compiled from. Not sent to the browser.
	Pattern string `json:"-"`
}

// Validate checks the fields the browser would otherwise reject.
func (r Rule) Validate() error {
	if r.ID < 1 {
		return fmt.Errorf("rule id must be >= 1, got %d", r.ID)
	}
	if r.Condition.RegexFilter == "" {
		return fmt.Errorf("rule %d: empty regexFilter", r.ID)
	}
	switch r.Action.Type {
	case RuleActionAllow:
	case RuleActionRedirect:
		if r.Action.Redirect == nil || (r.Action.Redirect.URL == "") == (r.Action.Redirect.RegexSubstitution == "") {
			return fmt.Errorf("rule %d: redirect action needs exactly one of url or regexSubstitution", r.ID)
		}
	default:
		return fmt.Errorf("rule %d: unsupported action %q", r.ID, r.Action.Type)
	}
	return nil
}

// AllRuleIDs returns 1..n, the id range cleared before every install.
func AllRuleIDs(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}
