// Package tabs keeps per-tab redirect records so blocked tabs can be sent
// back where they were going once focus mode ends.
package tabs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/haukened/focusgate/internal/focus/common/clock"
	"github.com/haukened/focusgate/internal/focus/common/log"
	"github.com/haukened/focusgate/internal/focus/domain"
)

const (
	DefaultLookupAttempts = 3
	DefaultLookupDelay    = 50 * time.Millisecond
)

// Options configures a Tracker.
type Options struct {
	Browser         Browser
	Records         RecordStore
	State           StateReader
	Clock           clock.Clock
	InterstitialURL string
	LookupAttempts  int
	LookupDelay     time.Duration
	Logger          log.Logger
}

// Tracker moves tabs between the Normal and Redirected states.
// A tab is Redirected while it has a record.
type Tracker struct {
	browser      Browser
	records      RecordStore
	state        StateReader
	clock        clock.Clock
	interstitial string
	attempts     int
	delay        time.Duration
	logger       log.Logger
}

// NewTracker constructs a Tracker, filling in the default lookup budget.
func NewTracker(opts Options) *Tracker {
	t := &Tracker{
		browser:      opts.Browser,
		records:      opts.Records,
		state:        opts.State,
		clock:        opts.Clock,
		interstitial: opts.InterstitialURL,
		attempts:     opts.LookupAttempts,
		delay:        opts.LookupDelay,
		logger:       log.Component(opts.Logger, "tabs"),
	}
	if t.clock == nil {
		t.clock = clock.RealClock{}
	}
	if t.attempts <= 0 {
		t.attempts = DefaultLookupAttempts
	}
	if t.delay <= 0 {
		t.delay = DefaultLookupDelay
	}
	return t
}

// IsInterstitial reports whether url is the interstitial page, ignoring any
// query or fragment appended to it.
func (t *Tracker) IsInterstitial(url string) bool {
	return domain.IsInterstitialURL(t.interstitial, url)
}

// HandleBeforeNavigate records the destination of a top-level navigation
// that is about to commit. The redirect itself is done by the installed
// rules, so no tab update is issued here.
func (t *Tracker) HandleBeforeNavigate(_ context.Context, ev domain.NavigationEvent) {
	if !ev.TopLevel() || !t.state.IsBlocking() || t.IsInterstitial(ev.URL) {
		return
	}
	d := t.state.Decide(ev.URL)
	if d.Blocked() {
		t.records.Set(ev.TabID, ev.URL)
		t.logger.Debug(map[string]any{"tab": ev.TabID, "url": ev.URL, "pattern": d.Pattern}, "recorded blocked navigation")
		return
	}
	t.records.Delete(ev.TabID)
}

// HandleTabActivated checks a tab that was brought to the foreground.
func (t *Tracker) HandleTabActivated(ctx context.Context, id domain.TabID) error {
	if !t.state.IsBlocking() {
		return nil
	}
	tab, err := t.browser.GetTab(ctx, id)
	if err != nil {
		return fmt.Errorf("get tab %d: %w", id, err)
	}
	if tab.URL == "" || t.IsInterstitial(tab.URL) {
		return nil
	}
	if d := t.state.Decide(tab.URL); d.Blocked() {
		return t.divert(ctx, tab.ID, tab.URL, d)
	}
	return nil
}

// HandleTabUpdated checks a committed URL change in an existing tab.
func (t *Tracker) HandleTabUpdated(ctx context.Context, id domain.TabID, url string) error {
	if !t.state.IsBlocking() || url == "" || t.IsInterstitial(url) {
		return nil
	}
	d := t.state.Decide(url)
	if d.Blocked() {
		return t.divert(ctx, id, url, d)
	}
	t.records.Delete(id)
	return nil
}

// divert stores url for the tab and then navigates the tab to the
// interstitial, passing url along for display.
func (t *Tracker) divert(ctx context.Context, id domain.TabID, url string, d domain.Decision) error {
	t.records.Set(id, url)
	if err := t.browser.UpdateTab(ctx, id, domain.InterstitialTarget(t.interstitial, url)); err != nil {
		return fmt.Errorf("redirect tab %d: %w", id, err)
	}
	t.logger.Info(map[string]any{"tab": id, "url": url, "pattern": d.Pattern}, "tab redirected")
	return nil
}

// LookupOrigin returns the original URL recorded for tab. The record may be
// written slightly after the interstitial asks for it, so the read is retried
// up to the configured attempt count. An empty string means unknown.
func (t *Tracker) LookupOrigin(ctx context.Context, id domain.TabID) string {
	for attempt := 1; ; attempt++ {
		if url, ok := t.records.Get(id); ok {
			return url
		}
		if attempt >= t.attempts {
			break
		}
		if err := t.clock.Sleep(ctx, t.delay); err != nil {
			break
		}
	}
	t.logger.Warn(map[string]any{"tab": id, "attempts": t.attempts}, "no origin recorded for tab")
	return ""
}

// RestoreAll sends every tab showing the interstitial back to its recorded
// URL. The record is deleted before the tab is navigated so the navigation
// is never mistaken for a new original destination. Records left over for
// tabs that are no longer open are dropped at the end.
func (t *Tracker) RestoreAll(ctx context.Context) error {
	open, err := t.browser.QueryTabs(ctx)
	if err != nil {
		return fmt.Errorf("query tabs: %w", err)
	}

	var errs error
	restored := 0
	for _, tab := range open {
		if !t.IsInterstitial(tab.URL) {
			continue
		}
		url, ok := t.records.Get(tab.ID)
		if !ok {
			t.logger.Warn(map[string]any{"tab": tab.ID}, "interstitial tab has no record")
			continue
		}
		t.records.Delete(tab.ID)
		if err := t.browser.UpdateTab(ctx, tab.ID, url); err != nil {
			t.logger.Error(map[string]any{"tab": tab.ID, "error": err}, "failed to restore tab")
			errs = multierr.Append(errs, fmt.Errorf("restore tab %d: %w", tab.ID, err))
			continue
		}
		restored++
	}

	stale := t.records.Clear()
	t.logger.Info(map[string]any{"restored": restored, "stale": stale}, "restore sweep finished")
	return errs
}

// SweepOpenTabs redirects every open tab whose current URL is blocked.
func (t *Tracker) SweepOpenTabs(ctx context.Context) error {
	if !t.state.IsBlocking() {
		return nil
	}
	open, err := t.browser.QueryTabs(ctx)
	if err != nil {
		return fmt.Errorf("query tabs: %w", err)
	}

	var errs error
	for _, tab := range open {
		if tab.URL == "" || t.IsInterstitial(tab.URL) {
			continue
		}
		d := t.state.Decide(tab.URL)
		if !d.Blocked() {
			continue
		}
		if err := t.divert(ctx, tab.ID, tab.URL, d); err != nil {
			t.logger.Error(map[string]any{"tab": tab.ID, "error": err}, "failed to redirect open tab")
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
