package rules

import (
	"context"

	"github.com/haukened/focusgate/internal/focus/domain"
)

// Installer is the browser's atomic "remove these ids, add these rules"
// primitive. Implementations must apply both halves or neither.
type Installer interface {
	UpdateDynamicRules(ctx context.Context, removeIDs []int, add []domain.Rule) error
}

// Restorer sends tabs parked on the interstitial back to their original URLs.
type Restorer interface {
	RestoreAll(ctx context.Context) error
}
