package engine

import (
	"sync"

	"github.com/haukened/focusgate/internal/focus/domain"
	"github.com/haukened/focusgate/internal/focus/repos/matchset"
)

// State is the process-wide blocking flag and list pair. Every list change
// recompiles the match index so readers never see lists and index disagree.
type State struct {
	mu       sync.RWMutex
	known    bool
	blocking bool
	lists    domain.Lists
	index    *matchset.Index
	opts     matchset.Options
}

// NewState returns an empty, not-blocking State. The blocking flag is
// considered unknown until the first SetBlocking.
func NewState(opts matchset.Options) *State {
	s := &State{opts: opts, lists: domain.Lists{Block: []string{}, Allow: []string{}}}
	s.index = matchset.Build(s.lists, opts)
	return s
}

func (s *State) IsBlocking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocking
}

// Decide evaluates url against the current lists.
func (s *State) Decide(url string) domain.Decision {
	s.mu.RLock()
	ix := s.index
	s.mu.RUnlock()
	return ix.Decide(url)
}

// Lists returns a copy of the current lists.
func (s *State) Lists() domain.Lists {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lists.Clone()
}

// Index returns the compiled view of the current lists.
func (s *State) Index() *matchset.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// SetBlocking stores the flag and reports whether it changed. The first call
// always reports a change.
func (s *State) SetBlocking(blocking bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.known || s.blocking != blocking
	s.known = true
	s.blocking = blocking
	return changed
}

// SetLists replaces both lists.
func (s *State) SetLists(l domain.Lists) {
	l = l.Clone()
	ix := matchset.Build(l, s.opts)
	s.mu.Lock()
	s.lists, s.index = l, ix
	s.mu.Unlock()
}

func (s *State) setBlockList(entries []string) {
	l := s.Lists()
	l.Block = entries
	s.SetLists(l)
}

func (s *State) setAllowList(entries []string) {
	l := s.Lists()
	l.Allow = entries
	s.SetLists(l)
}
