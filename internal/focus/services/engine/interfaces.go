package engine

import (
	"context"

	"github.com/haukened/focusgate/internal/focus/domain"
)

// ListStore persists the two user lists.
type ListStore interface {
	Load() (domain.Lists, error)
	SaveBlockList(entries []string) error
	SaveAllowList(entries []string) error
}

// RuleBuilder replaces the installed rule set.
type RuleBuilder interface {
	Rebuild(ctx context.Context, isBlocking bool, blockList, allowList []string) error
}

// TabTracker is the per-tab redirect bookkeeping the engine drives.
type TabTracker interface {
	HandleBeforeNavigate(ctx context.Context, ev domain.NavigationEvent)
	HandleTabActivated(ctx context.Context, id domain.TabID) error
	HandleTabUpdated(ctx context.Context, id domain.TabID, url string) error
	LookupOrigin(ctx context.Context, id domain.TabID) string
	SweepOpenTabs(ctx context.Context) error
}
