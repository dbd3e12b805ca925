// Package lists persists the user's block and allow lists.
package lists

import "github.com/haukened/focusgate/internal/focus/domain"

// Storage keys, shared by every backend so data stays portable.
const (
	KeyBlocked = "blockedWebsites"
	KeyAllowed = "allowWebsites"
)

// StoreStats captures counts and metadata for the persistent store.
type StoreStats struct {
	BlockCount  int
	AllowCount  int
	Version     uint64 // bumped on every successful write
	UpdatedUnix int64  // seconds since epoch of the last write
}

// Store is durable local storage for the two pattern lists.
// Missing lists load as empty; each Save replaces one list atomically.
type Store interface {
	Load() (domain.Lists, error)
	SaveBlockList(entries []string) error
	SaveAllowList(entries []string) error
	Stats() StoreStats
	Close() error
}
