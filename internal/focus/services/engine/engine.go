// Package engine ties the focus state, the lists, the rule set and the tab
// tracker together and answers the UI control protocol.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/haukened/focusgate/internal/focus/common/log"
	"github.com/haukened/focusgate/internal/focus/domain"
)

type Options struct {
	State  *State
	Lists  ListStore
	Rules  RuleBuilder
	Tabs   TabTracker
	Logger log.Logger
}

// Engine serialises every state mutation. Reads go straight to State.
type Engine struct {
	state  *State
	lists  ListStore
	rules  RuleBuilder
	tabs   TabTracker
	logger log.Logger

	mu        sync.Mutex
	startOnce sync.Once
	ready     chan struct{}
}

func New(opts Options) *Engine {
	return &Engine{
		state:  opts.State,
		lists:  opts.Lists,
		rules:  opts.Rules,
		tabs:   opts.Tabs,
		logger: log.Component(opts.Logger, "engine"),
		ready:  make(chan struct{}),
	}
}

// Start loads the persisted lists. Only the first call does any work; a load
// failure is logged and leaves both lists empty.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		defer close(e.ready)
		lists, err := e.lists.Load()
		if err != nil {
			e.logger.Error(map[string]any{"error": err}, "failed to load lists, starting empty")
			return
		}
		e.state.SetLists(lists)
		e.logger.Info(map[string]any{
			"block": len(lists.Block),
			"allow": len(lists.Allow),
		}, "lists loaded")
	})
}

// Ready is closed once the initial load has finished.
func (e *Engine) Ready() <-chan struct{} { return e.ready }

func (e *Engine) awaitReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsBlocking reports the current focus flag.
func (e *Engine) IsBlocking() bool { return e.state.IsBlocking() }

// Decide evaluates url against the current lists.
func (e *Engine) Decide(url string) domain.Decision { return e.state.Decide(url) }

// SetFocusing applies an observed focus state. Nothing happens when the
// state is unchanged. Activation also redirects already open blocked tabs;
// deactivation restores tabs through the rule builder.
func (e *Engine) SetFocusing(ctx context.Context, focusing bool) error {
	if err := e.awaitReady(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.SetBlocking(focusing) {
		return nil
	}
	e.logger.Info(map[string]any{"blocking": focusing}, "blocking state changed")
	return e.apply(ctx)
}

// Resync reinstalls rules for the current state, e.g. after the browser
// reconnects and may have lost them.
func (e *Engine) Resync(ctx context.Context) error {
	if err := e.awaitReady(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apply(ctx)
}

// apply must be called with e.mu held.
func (e *Engine) apply(ctx context.Context) error {
	blocking := e.state.IsBlocking()
	lists := e.state.Lists()

	err := e.rules.Rebuild(ctx, blocking, lists.Block, lists.Allow)
	if err != nil {
		err = fmt.Errorf("rebuild rules: %w", err)
	}
	if blocking {
		if serr := e.tabs.SweepOpenTabs(ctx); serr != nil {
			err = multierr.Append(err, fmt.Errorf("sweep open tabs: %w", serr))
		}
	}
	return err
}

// HandleMessage answers one UI control protocol request.
func (e *Engine) HandleMessage(ctx context.Context, sender domain.Sender, msg domain.Message) (any, error) {
	if err := e.awaitReady(ctx); err != nil {
		return nil, err
	}

	switch msg.Type {
	case domain.MsgGetStatus:
		lists := e.state.Lists()
		return domain.StatusResponse{
			IsBlocking:      e.state.IsBlocking(),
			BlockedWebsites: lists.Block,
			AllowWebsites:   lists.Allow,
		}, nil

	case domain.MsgUpdateWebsites:
		return e.updateList(ctx, "block", msg.Websites, e.lists.SaveBlockList, e.state.setBlockList), nil

	case domain.MsgUpdateAllowlist:
		return e.updateList(ctx, "allow", msg.Websites, e.lists.SaveAllowList, e.state.setAllowList), nil

	case domain.MsgGetCurrentTabURL:
		if sender.TabID == nil {
			return nil, domain.ErrNoSenderTab
		}
		return domain.TabURLResponse{URL: e.tabs.LookupOrigin(ctx, *sender.TabID)}, nil

	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMessage, msg.Type)
	}
}

// updateList persists entries before touching memory, so a failed write
// leaves the running state as it was.
func (e *Engine) updateList(ctx context.Context, name string, websites []string, save func([]string) error, set func([]string)) domain.UpdateResponse {
	entries := normalize(websites)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := save(entries); err != nil {
		e.logger.Error(map[string]any{"list": name, "error": err}, "failed to persist list")
		return domain.UpdateResponse{Success: false}
	}
	set(entries)
	e.logger.Info(map[string]any{"list": name, "entries": len(entries)}, "list updated")

	if e.state.IsBlocking() {
		if err := e.apply(ctx); err != nil {
			e.logger.Error(map[string]any{"list": name, "error": err}, "failed to apply list update")
		}
	}
	return domain.UpdateResponse{Success: true}
}

// normalize trims entries and drops blanks.
func normalize(websites []string) []string {
	out := make([]string, 0, len(websites))
	for _, w := range websites {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// OnBeforeNavigate forwards a pre-commit navigation to the tracker.
func (e *Engine) OnBeforeNavigate(ctx context.Context, ev domain.NavigationEvent) {
	e.tabs.HandleBeforeNavigate(ctx, ev)
}

func (e *Engine) OnTabActivated(ctx context.Context, id domain.TabID) {
	if err := e.tabs.HandleTabActivated(ctx, id); err != nil {
		e.logger.Warn(map[string]any{"tab": id, "error": err}, "tab activation check failed")
	}
}

func (e *Engine) OnTabUpdated(ctx context.Context, id domain.TabID, url string) {
	if err := e.tabs.HandleTabUpdated(ctx, id, url); err != nil {
		e.logger.Warn(map[string]any{"tab": id, "error": err}, "tab update check failed")
	}
}
