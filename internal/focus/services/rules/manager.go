// Package rules projects the pattern lists into the browser's declarative
// rule set. Every rebuild replaces the whole set; nothing is patched.
package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/haukened/focusgate/internal/focus/common/log"
	"github.com/haukened/focusgate/internal/focus/domain"
	"github.com/haukened/focusgate/internal/focus/pattern"
)

// ErrRuleLimit is returned when the compiled set would exceed the ceiling.
// Nothing beyond the clear is installed in that case.
var ErrRuleLimit = errors.New("rule limit exceeded")

// Options configures a Manager.
type Options struct {
	Installer       Installer
	Restorer        Restorer // optional
	Compiler        pattern.Compiler
	InterstitialURL string
	MaxRules        int // defaults to domain.MaxInstalledRules
	Logger          log.Logger
}

// Stats is a snapshot of manager activity.
type Stats struct {
	Rebuilds  uint64
	Installed int
	Skipped   int
	LastError string
}

type inputs struct {
	blocking bool
	lists    domain.Lists
}

// request is one rebuild run. Callers that arrive while a run is in flight
// share the single queued request, and all of them get its result.
type request struct {
	ctx     context.Context
	in      inputs
	waiters int
	done    chan struct{}
	err     error
}

// Manager owns the installed rule set.
type Manager struct {
	installer    Installer
	restorer     Restorer
	compiler     pattern.Compiler
	interstitial string
	maxRules     int
	logger       log.Logger

	mu           sync.Mutex
	running      bool
	pending      *request
	lastBlocking bool
	installed    []domain.Rule
	stats        Stats
}

// NewManager constructs a Manager.
func NewManager(opts Options) *Manager {
	maxRules := opts.MaxRules
	if maxRules <= 0 {
		maxRules = domain.MaxInstalledRules
	}
	compiler := opts.Compiler
	if compiler == nil {
		compiler = pattern.Uncached
	}
	return &Manager{
		installer:    opts.Installer,
		restorer:     opts.Restorer,
		compiler:     compiler,
		interstitial: opts.InterstitialURL,
		maxRules:     maxRules,
		logger:       log.Component(opts.Logger, "rules"),
	}
}

// Rebuild clears ids 1..MaxRules and, when blocking with non-empty lists,
// installs the freshly compiled set in the same atomic call. When blocking
// has just been lifted the tab restore sweep runs after the clear.
//
// A call arriving while another rebuild is in flight is coalesced: it queues
// its inputs, replacing any still-queued ones, and waits. The in-flight call
// then runs once more with the latest inputs, and every queued caller gets
// the error of that run.
func (m *Manager) Rebuild(ctx context.Context, isBlocking bool, blockList, allowList []string) error {
	in := inputs{blocking: isBlocking, lists: domain.Lists{Block: blockList, Allow: allowList}.Clone()}

	m.mu.Lock()
	if m.running {
		req := m.pending
		if req == nil {
			req = &request{done: make(chan struct{})}
			m.pending = req
		}
		req.ctx, req.in = ctx, in
		req.waiters++
		waiters := req.waiters
		m.mu.Unlock()
		m.logger.Debug(map[string]any{"blocking": isBlocking, "waiters": waiters}, "rebuild coalesced")

		select {
		case <-req.done:
			return req.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.running = true
	m.mu.Unlock()

	own := &request{ctx: ctx, in: in, done: make(chan struct{})}
	req := own
	for {
		err := m.rebuild(req.ctx, req.in)

		m.mu.Lock()
		m.stats.Rebuilds++
		if err != nil {
			m.stats.LastError = err.Error()
		} else {
			m.stats.LastError = ""
		}
		req.err = err
		close(req.done)
		if m.pending == nil {
			m.running = false
			m.mu.Unlock()
			return own.err
		}
		req = m.pending
		m.pending = nil
		m.mu.Unlock()
	}
}

func (m *Manager) rebuild(ctx context.Context, in inputs) error {
	removeIDs := domain.AllRuleIDs(m.maxRules)

	if !in.blocking || in.lists.Empty() {
		if err := m.installer.UpdateDynamicRules(ctx, removeIDs, nil); err != nil {
			return fmt.Errorf("clear rules: %w", err)
		}
		m.setInstalled(nil, 0)

		deactivated := m.lastBlocking && !in.blocking
		m.lastBlocking = in.blocking
		m.logger.Info(map[string]any{"blocking": in.blocking}, "rule set cleared")

		if deactivated && m.restorer != nil {
			if err := m.restorer.RestoreAll(ctx); err != nil {
				return fmt.Errorf("restore tabs: %w", err)
			}
		}
		return nil
	}

	rules, skipped := BuildRules(in.lists, m.compiler, m.interstitial)
	for _, s := range skipped {
		m.logger.Warn(map[string]any{"pattern": s.Pattern, "error": s.Err}, "skipping malformed pattern")
	}

	if len(rules) > m.maxRules {
		if err := m.installer.UpdateDynamicRules(ctx, removeIDs, nil); err != nil {
			return fmt.Errorf("clear rules: %w", err)
		}
		m.setInstalled(nil, len(skipped))
		m.lastBlocking = true
		m.logger.Error(map[string]any{"rules": len(rules), "max": m.maxRules}, "rule set exceeds limit, nothing installed")
		return fmt.Errorf("%w: %d rules, max %d", ErrRuleLimit, len(rules), m.maxRules)
	}

	if err := m.installer.UpdateDynamicRules(ctx, removeIDs, rules); err != nil {
		// The install is atomic, so a rejection leaves the previous set untouched
		// and the next rebuild is the recovery path.
		return fmt.Errorf("install rules: %w", err)
	}
	m.setInstalled(rules, len(skipped))
	m.lastBlocking = true

	m.logger.Info(map[string]any{
		"rules":   len(rules),
		"allow":   len(in.lists.Allow),
		"block":   len(in.lists.Block),
		"skipped": len(skipped),
	}, "rule set installed")
	return nil
}

func (m *Manager) setInstalled(rules []domain.Rule, skipped int) {
	m.mu.Lock()
	m.installed = rules
	m.stats.Installed = len(rules)
	m.stats.Skipped = skipped
	m.mu.Unlock()
}

// Installed returns the rule set from the last successful rebuild.
func (m *Manager) Installed() []domain.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Rule, len(m.installed))
	copy(out, m.installed)
	return out
}

// Stats returns a snapshot of manager counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
