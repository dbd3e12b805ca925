package tabs

import (
	"context"

	"github.com/haukened/focusgate/internal/focus/domain"
)

// Browser is the tab surface of the host browser.
type Browser interface {
	QueryTabs(ctx context.Context) ([]domain.Tab, error)
	GetTab(ctx context.Context, id domain.TabID) (domain.Tab, error)
	UpdateTab(ctx context.Context, id domain.TabID, url string) error
}

// RecordStore holds the original destination of each redirected tab.
type RecordStore interface {
	Get(tab domain.TabID) (string, bool)
	Set(tab domain.TabID, url string)
	Delete(tab domain.TabID)
	Clear() int
}

// StateReader exposes the current blocking state and list decisions.
type StateReader interface {
	IsBlocking() bool
	Decide(url string) domain.Decision
}
