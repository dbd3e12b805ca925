package engine_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/haukened/focusgate/internal/focus/common/clock"
	"github.com/haukened/focusgate/internal/focus/common/log"
	"github.com/haukened/focusgate/internal/focus/domain"
	"github.com/haukened/focusgate/internal/focus/pattern"
	"github.com/haukened/focusgate/internal/focus/repos/matchset"
	"github.com/haukened/focusgate/internal/focus/repos/matchset/bloom"
	"github.com/haukened/focusgate/internal/focus/repos/session"
	"github.com/haukened/focusgate/internal/focus/services/engine"
	"github.com/haukened/focusgate/internal/focus/services/poller"
	"github.com/haukened/focusgate/internal/focus/services/rules"
	"github.com/haukened/focusgate/internal/focus/services/tabs"
)

const interstitial = "http://127.0.0.1:42070/blocked"

// blockedPage is where a tab showing origin lands while blocking.
func blockedPage(origin string) string { return domain.InterstitialTarget(interstitial, origin) }

type harness struct {
	browser *fakeBrowser
	store   *memLists
	records *session.Store
	state   *engine.State
	manager *rules.Manager
	tracker *tabs.Tracker
	engine  *engine.Engine
}

func newHarness(lists domain.Lists) *harness {
	h := &harness{
		browser: newFakeBrowser(),
		store:   &memLists{lists: lists},
		records: session.New(),
	}
	compiler, err := pattern.NewCachedCompiler(64)
	Expect(err).NotTo(HaveOccurred())

	h.state = engine.NewState(matchset.Options{Compiler: compiler, Factory: bloom.NewFactory(), FPRate: 0.001})
	h.tracker = tabs.NewTracker(tabs.Options{
		Browser:         h.browser,
		Records:         h.records,
		State:           h.state,
		Clock:           &clock.MockClock{},
		InterstitialURL: interstitial,
		Logger:          log.NewNoopLogger(),
	})
	h.manager = rules.NewManager(rules.Options{
		Installer:       h.browser,
		Restorer:        h.tracker,
		Compiler:        compiler,
		InterstitialURL: interstitial,
		Logger:          log.NewNoopLogger(),
	})
	h.engine = engine.New(engine.Options{
		State:  h.state,
		Lists:  h.store,
		Rules:  h.manager,
		Tabs:   h.tracker,
		Logger: log.NewNoopLogger(),
	})
	h.engine.Start(context.Background())
	return h
}

// navigate replays what the browser does for a top-level navigation: the
// pre-commit hook fires, the rules decide where the tab lands, and the
// committed URL is reported as a tab update.
func (h *harness) navigate(id domain.TabID, url string) {
	ctx := context.Background()
	h.engine.OnBeforeNavigate(ctx, domain.NavigationEvent{TabID: id, URL: url})
	landed := h.browser.resolve(url)
	h.browser.open(id, landed)
	h.engine.OnTabUpdated(ctx, id, landed)
}

func (h *harness) originFor(id domain.TabID) string {
	resp, err := h.engine.HandleMessage(context.Background(), domain.Sender{TabID: &id}, domain.Message{Type: domain.MsgGetCurrentTabURL})
	Expect(err).NotTo(HaveOccurred())
	return resp.(domain.TabURLResponse).URL
}

func (h *harness) status() domain.StatusResponse {
	resp, err := h.engine.HandleMessage(context.Background(), domain.Sender{}, domain.Message{Type: domain.MsgGetStatus})
	Expect(err).NotTo(HaveOccurred())
	return resp.(domain.StatusResponse)
}

var _ = Describe("Focus blocking", func() {
	ctx := context.Background()

	Describe("a plain block list", func() {
		var h *harness

		BeforeEach(func() {
			h = newHarness(domain.Lists{Block: []string{"reddit.com"}})
			Expect(h.engine.SetFocusing(ctx, true)).To(Succeed())
		})

		It("redirects subdomains of a blocked host and remembers the origin", func() {
			h.navigate(1, "https://old.reddit.com/r/foo")

			Expect(h.browser.url(1)).To(Equal(blockedPage("https://old.reddit.com/r/foo")))
			Expect(h.originFor(1)).To(Equal("https://old.reddit.com/r/foo"))
		})

		It("does not redirect a lookalike host", func() {
			h.navigate(1, "https://reddit.co/x")

			Expect(h.browser.url(1)).To(Equal("https://reddit.co/x"))
			Expect(h.originFor(1)).To(BeEmpty())
		})
	})

	Describe("an allow entry carved out of a blocked host", func() {
		var h *harness

		BeforeEach(func() {
			h = newHarness(domain.Lists{Block: []string{"x.com"}, Allow: []string{"x.com/i/grok"}})
			Expect(h.engine.SetFocusing(ctx, true)).To(Succeed())
		})

		It("lets the allowed path through", func() {
			h.navigate(3, "https://x.com/i/grok/chat")
			Expect(h.browser.url(3)).To(Equal("https://x.com/i/grok/chat"))
		})

		It("redirects the rest of the host", func() {
			h.navigate(3, "https://x.com/home")
			Expect(h.browser.url(3)).To(Equal(blockedPage("https://x.com/home")))
		})

		It("installs allow rules ahead of block rules", func() {
			installed := h.browser.installed()
			Expect(installed).To(HaveLen(2))
			Expect(installed[0].ID).To(Equal(1))
			Expect(installed[0].Action.Type).To(Equal(domain.RuleActionAllow))
			Expect(installed[1].ID).To(Equal(2))
			Expect(installed[1].Priority).To(BeNumerically("<", installed[0].Priority))
		})
	})

	Describe("the poller driving a focus session", func() {
		It("leaves no rules and restores every tab after false, true, false", func() {
			h := newHarness(domain.Lists{Block: []string{"reddit.com", "x.com"}})
			h.browser.open(1, "https://www.reddit.com/r/golang")
			h.browser.open(2, "https://example.com/")

			status := &scriptedStatus{steps: []bool{false, true, false}}
			p := poller.New(poller.Options{Source: status, Sink: h.engine, Logger: log.NewNoopLogger()})

			Expect(p.Poll(ctx)).To(BeFalse())
			Expect(h.browser.ruleCount()).To(BeZero())

			Expect(p.Poll(ctx)).To(BeTrue())
			Expect(h.browser.ruleCount()).To(Equal(2))
			Expect(h.browser.url(1)).To(Equal(blockedPage("https://www.reddit.com/r/golang")))
			Expect(h.browser.url(2)).To(Equal("https://example.com/"))

			h.navigate(2, "https://x.com/home")
			Expect(h.browser.url(2)).To(Equal(blockedPage("https://x.com/home")))

			Expect(p.Poll(ctx)).To(BeFalse())
			Expect(h.browser.ruleCount()).To(BeZero())
			Expect(h.browser.url(1)).To(Equal("https://www.reddit.com/r/golang"))
			Expect(h.browser.url(2)).To(Equal("https://x.com/home"))
			Expect(h.records.Len()).To(BeZero())
		})

		It("treats an unreachable status source as not focusing", func() {
			h := newHarness(domain.Lists{Block: []string{"reddit.com"}})
			h.browser.open(1, "https://reddit.com/")

			status := &scriptedStatus{
				steps: []bool{true, true},
				errs:  []error{nil, errors.New("connection refused")},
			}
			p := poller.New(poller.Options{Source: status, Sink: h.engine, Logger: log.NewNoopLogger()})

			Expect(p.Poll(ctx)).To(BeTrue())
			Expect(h.browser.url(1)).To(Equal(blockedPage("https://reddit.com/")))

			Expect(p.Poll(ctx)).To(BeFalse())
			Expect(h.browser.ruleCount()).To(BeZero())
			Expect(h.browser.url(1)).To(Equal("https://reddit.com/"))
		})
	})

	Describe("restoring after several blocked navigations", func() {
		It("sends the tab to the last blocked destination", func() {
			h := newHarness(domain.Lists{Block: []string{"reddit.com"}})
			Expect(h.engine.SetFocusing(ctx, true)).To(Succeed())

			h.navigate(4, "https://reddit.com/first")
			h.navigate(4, "https://reddit.com/second")
			Expect(h.originFor(4)).To(Equal("https://reddit.com/second"))

			Expect(h.engine.SetFocusing(ctx, false)).To(Succeed())
			Expect(h.browser.url(4)).To(Equal("https://reddit.com/second"))
		})
	})

	Describe("editing lists from the UI", func() {
		It("persists, rebuilds and sweeps while blocking", func() {
			h := newHarness(domain.Lists{})
			h.browser.open(1, "https://news.ycombinator.com/")
			Expect(h.engine.SetFocusing(ctx, true)).To(Succeed())
			Expect(h.browser.ruleCount()).To(BeZero())

			resp, err := h.engine.HandleMessage(ctx, domain.Sender{}, domain.Message{
				Type:     domain.MsgUpdateWebsites,
				Websites: []string{"  ycombinator.com ", "", "reddit.com"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(Equal(domain.UpdateResponse{Success: true}))

			Expect(h.store.lists.Block).To(Equal([]string{"ycombinator.com", "reddit.com"}))
			Expect(h.status().BlockedWebsites).To(Equal([]string{"ycombinator.com", "reddit.com"}))
			Expect(h.browser.ruleCount()).To(Equal(2))
			Expect(h.browser.url(1)).To(Equal(blockedPage("https://news.ycombinator.com/")))
		})

		It("only persists while not blocking", func() {
			h := newHarness(domain.Lists{})
			Expect(h.engine.SetFocusing(ctx, false)).To(Succeed())

			_, err := h.engine.HandleMessage(ctx, domain.Sender{}, domain.Message{
				Type:     domain.MsgUpdateAllowlist,
				Websites: []string{"github.com"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(h.status().AllowWebsites).To(Equal([]string{"github.com"}))
			Expect(h.browser.ruleCount()).To(BeZero())
		})

		It("keeps the old list when persisting fails", func() {
			h := newHarness(domain.Lists{Block: []string{"reddit.com"}})
			h.store.saveErr = errors.New("disk full")

			resp, err := h.engine.HandleMessage(ctx, domain.Sender{}, domain.Message{
				Type:     domain.MsgUpdateWebsites,
				Websites: []string{"x.com"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(Equal(domain.UpdateResponse{Success: false}))
			Expect(h.status().BlockedWebsites).To(Equal([]string{"reddit.com"}))
		})
	})

	Describe("rebuilding twice with the same inputs", func() {
		It("installs the same rule set", func() {
			h := newHarness(domain.Lists{Block: []string{"reddit.com", "bad host"}, Allow: []string{"reddit.com/r/golang"}})
			Expect(h.engine.SetFocusing(ctx, true)).To(Succeed())
			first := h.browser.installed()

			Expect(h.engine.Resync(ctx)).To(Succeed())
			Expect(h.browser.installed()).To(Equal(first))
			Expect(first).To(HaveLen(2))
		})
	})

	Describe("the initial load", func() {
		It("holds GET_STATUS until the lists are loaded", func() {
			gate := make(chan struct{})
			store := &memLists{lists: domain.Lists{Block: []string{"reddit.com"}}, loadGate: gate}
			e := engine.New(engine.Options{
				State:  engine.NewState(matchset.Options{}),
				Lists:  store,
				Rules:  rules.NewManager(rules.Options{Installer: newFakeBrowser(), InterstitialURL: interstitial, Logger: log.NewNoopLogger()}),
				Logger: log.NewNoopLogger(),
			})
			go e.Start(ctx)

			answered := make(chan any, 1)
			go func() {
				defer GinkgoRecover()
				resp, err := e.HandleMessage(ctx, domain.Sender{}, domain.Message{Type: domain.MsgGetStatus})
				Expect(err).NotTo(HaveOccurred())
				answered <- resp
			}()

			Consistently(answered, 50*time.Millisecond).ShouldNot(Receive())
			close(gate)
			var got any
			Eventually(answered).Should(Receive(&got))
			Expect(got.(domain.StatusResponse).BlockedWebsites).To(Equal([]string{"reddit.com"}))
		})
	})
})
