package engine_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/haukened/focusgate/internal/focus/domain"
)

// fakeBrowser is an in-memory browser: it keeps open tabs, holds the
// installed dynamic rules and applies them to navigations the way the
// browser's rule engine would.
type fakeBrowser struct {
	mu    sync.Mutex
	tabs  map[domain.TabID]string
	rules map[int]domain.Rule
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{tabs: map[domain.TabID]string{}, rules: map[int]domain.Rule{}}
}

func (b *fakeBrowser) UpdateDynamicRules(_ context.Context, removeIDs []int, add []domain.Rule) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := make(map[int]domain.Rule, len(b.rules))
	for id, r := range b.rules {
		next[id] = r
	}
	for _, id := range removeIDs {
		delete(next, id)
	}
	for _, r := range add {
		if _, dup := next[r.ID]; dup {
			return fmt.Errorf("duplicate rule id %d", r.ID)
		}
		if err := r.Validate(); err != nil {
			return err
		}
		next[r.ID] = r
	}
	b.rules = next
	return nil
}

func (b *fakeBrowser) QueryTabs(context.Context) ([]domain.Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Tab, 0, len(b.tabs))
	for id, url := range b.tabs {
		out = append(out, domain.Tab{ID: id, URL: url})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *fakeBrowser) GetTab(_ context.Context, id domain.TabID) (domain.Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	url, ok := b.tabs[id]
	if !ok {
		return domain.Tab{}, errors.New("no such tab")
	}
	return domain.Tab{ID: id, URL: url}, nil
}

func (b *fakeBrowser) UpdateTab(_ context.Context, id domain.TabID, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tabs[id]; !ok {
		return errors.New("no such tab")
	}
	b.tabs[id] = url
	return nil
}

func (b *fakeBrowser) open(id domain.TabID, url string) {
	b.mu.Lock()
	b.tabs[id] = url
	b.mu.Unlock()
}

func (b *fakeBrowser) url(id domain.TabID) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tabs[id]
}

func (b *fakeBrowser) ruleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rules)
}

func (b *fakeBrowser) installed() []domain.Rule {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Rule, 0, len(b.rules))
	for _, r := range b.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// resolve returns where a main-frame request for url ends up under the
// installed rules: the highest priority matching rule decides.
func (b *fakeBrowser) resolve(url string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var winner *domain.Rule
	for id := range b.rules {
		r := b.rules[id]
		expr := r.Condition.RegexFilter
		if !r.Condition.IsURLFilterCaseSensitive {
			expr = "(?i)" + expr
		}
		if !regexp.MustCompile(expr).MatchString(url) {
			continue
		}
		if winner == nil || r.Priority > winner.Priority {
			winner = &r
		}
	}
	if winner == nil || winner.Action.Type == domain.RuleActionAllow {
		return url
	}
	if sub := winner.Action.Redirect.RegexSubstitution; sub != "" {
		// block filters consume the whole URL, so \0 is the URL itself
		return strings.ReplaceAll(sub, `\0`, url)
	}
	return winner.Action.Redirect.URL
}

// memLists is an in-memory engine.ListStore.
type memLists struct {
	mu       sync.Mutex
	lists    domain.Lists
	loadErr  error
	saveErr  error
	loadGate chan struct{}
}

func (m *memLists) Load() (domain.Lists, error) {
	if m.loadGate != nil {
		<-m.loadGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists.Clone(), m.loadErr
}

func (m *memLists) SaveBlockList(entries []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.lists.Block = append([]string(nil), entries...)
	return nil
}

func (m *memLists) SaveAllowList(entries []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.lists.Allow = append([]string(nil), entries...)
	return nil
}

// scriptedStatus replays a fixed sequence of poll results.
type scriptedStatus struct {
	mu    sync.Mutex
	steps []bool
	errs  []error
	i     int
}

func (s *scriptedStatus) IsFocusing(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.i
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	} else {
		s.i++
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.steps[i], err
}
