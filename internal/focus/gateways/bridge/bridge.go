// Package bridge connects the daemon to the browser extension over a single
// WebSocket. The extension executes rule and tab commands on the daemon's
// behalf and streams navigation events and UI control messages back.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/haukened/focusgate/internal/focus/common/log"
	"github.com/haukened/focusgate/internal/focus/domain"
)

// ErrNotConnected is returned by calls made while no extension is attached.
var ErrNotConnected = errors.New("browser bridge not connected")

// ErrDisconnected is returned to calls still waiting when the connection drops.
var ErrDisconnected = errors.New("browser bridge disconnected")

const (
	Path = "/bridge"

	DefaultCallTimeout = 5 * time.Second
	eventQueueSize     = 256
	readLimit          = 1 << 20
)

// RemoteError is a failure reported by the extension for a request.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

// Handler receives what the extension sends.
type Handler interface {
	OnBeforeNavigate(ctx context.Context, ev domain.NavigationEvent)
	OnTabActivated(ctx context.Context, id domain.TabID)
	OnTabUpdated(ctx context.Context, id domain.TabID, url string)
	HandleMessage(ctx context.Context, sender domain.Sender, msg domain.Message) (any, error)
}

type Options struct {
	Handler Handler
	// OnConnect runs in its own goroutine each time an extension attaches.
	OnConnect      func(ctx context.Context)
	OriginPatterns []string
	CallTimeout    time.Duration
	Logger         log.Logger
	// NewID may be replaced in tests.
	NewID func() string
}

type reply struct {
	env Envelope
	err error
}

type session struct {
	conn    *websocket.Conn
	cancel  context.CancelFunc
	pending map[string]chan reply
}

// Bridge is an http.Handler for the extension endpoint. It implements
// rules.Installer and tabs.Browser.
type Bridge struct {
	handler     Handler
	onConnect   func(ctx context.Context)
	origins     []string
	callTimeout time.Duration
	logger      log.Logger
	newID       func() string

	mu      sync.Mutex
	current *session
}

func New(opts Options) *Bridge {
	b := &Bridge{
		handler:     opts.Handler,
		onConnect:   opts.OnConnect,
		origins:     opts.OriginPatterns,
		callTimeout: opts.CallTimeout,
		logger:      log.Component(opts.Logger, "bridge"),
		newID:       opts.NewID,
	}
	if b.callTimeout <= 0 {
		b.callTimeout = DefaultCallTimeout
	}
	if b.newID == nil {
		b.newID = uuid.NewString
	}
	return b
}

// SetHandler installs the receiver of extension traffic. It must be called
// before the bridge starts serving.
func (b *Bridge) SetHandler(h Handler) {
	b.handler = h
}

// Connected reports whether an extension is attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current != nil
}

// ServeHTTP upgrades the request and serves the connection until it closes.
// A newer connection replaces an older one.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: b.origins})
	if err != nil {
		b.logger.Warn(map[string]any{"remote": r.RemoteAddr, "error": err}, "rejected bridge connection")
		return
	}
	conn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	s := &session{conn: conn, cancel: cancel, pending: make(map[string]chan reply)}

	b.mu.Lock()
	old := b.current
	b.current = s
	b.mu.Unlock()
	if old != nil {
		b.logger.Info(nil, "replacing existing bridge connection")
		go b.drop(old, websocket.StatusPolicyViolation, "replaced by a newer connection")
	}

	b.logger.Info(map[string]any{"remote": r.RemoteAddr}, "browser bridge connected")
	events := make(chan Envelope, eventQueueSize)
	go b.runEvents(ctx, events)
	if b.onConnect != nil {
		go b.onConnect(ctx)
	}

	err = b.readLoop(ctx, s, events)
	b.mu.Lock()
	if b.current == s {
		b.current = nil
	}
	b.mu.Unlock()
	b.drop(s, websocket.StatusNormalClosure, "")
	close(events)

	if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
		b.logger.Info(nil, "browser bridge disconnected")
	} else {
		b.logger.Warn(map[string]any{"error": err}, "browser bridge connection lost")
	}
}

func (b *Bridge) readLoop(ctx context.Context, s *session, events chan<- Envelope) error {
	for {
		var env Envelope
		if err := wsjson.Read(ctx, s.conn, &env); err != nil {
			return err
		}
		switch env.Kind {
		case KindResponse:
			b.deliver(s, env)
		case KindEvent:
			select {
			case events <- env:
			default:
				b.logger.Warn(map[string]any{"event": env.Event}, "event queue full, dropping event")
			}
		case KindControl:
			go b.answerControl(ctx, s, env)
		default:
			b.logger.Warn(map[string]any{"kind": env.Kind}, "ignoring unknown envelope kind")
		}
	}
}

// drop closes the session and fails every call waiting on it. The close
// frame must be sent before the session context is cancelled.
func (b *Bridge) drop(s *session, code websocket.StatusCode, reason string) {
	_ = s.conn.Close(code, reason)
	s.cancel()

	b.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]chan reply)
	b.mu.Unlock()
	for _, ch := range pending {
		ch <- reply{err: ErrDisconnected}
	}
}

func (b *Bridge) deliver(s *session, env Envelope) {
	b.mu.Lock()
	ch, ok := s.pending[env.ID]
	delete(s.pending, env.ID)
	b.mu.Unlock()
	if !ok {
		b.logger.Debug(map[string]any{"id": env.ID}, "response for unknown request")
		return
	}
	ch <- reply{env: env}
}

// runEvents handles navigation events one at a time, in arrival order, so
// the per-tab record always reflects the latest navigation.
func (b *Bridge) runEvents(ctx context.Context, events <-chan Envelope) {
	for env := range events {
		if env.TabID == nil {
			b.logger.Warn(map[string]any{"event": env.Event}, "event without tab id")
			continue
		}
		switch env.Event {
		case EventBeforeNavigate:
			b.handler.OnBeforeNavigate(ctx, domain.NavigationEvent{TabID: *env.TabID, FrameID: env.FrameID, URL: env.URL})
		case EventTabActivated:
			b.handler.OnTabActivated(ctx, *env.TabID)
		case EventTabUpdated:
			b.handler.OnTabUpdated(ctx, *env.TabID, env.URL)
		default:
			b.logger.Warn(map[string]any{"event": env.Event}, "ignoring unknown event")
		}
	}
}

func (b *Bridge) answerControl(ctx context.Context, s *session, env Envelope) {
	out := Envelope{Kind: KindControlResponse, ID: env.ID}
	if env.Message == nil {
		out.Error = "control envelope without message"
	} else {
		resp, err := b.handler.HandleMessage(ctx, domain.Sender{TabID: env.TabID}, *env.Message)
		if err != nil {
			out.Error = err.Error()
		} else if out.Result, err = json.Marshal(resp); err != nil {
			out.Error = err.Error()
		}
	}
	if err := wsjson.Write(ctx, s.conn, out); err != nil {
		b.logger.Warn(map[string]any{"id": env.ID, "error": err}, "failed to answer control message")
	}
}

// call sends a request and waits for the matching response.
func (b *Bridge) call(ctx context.Context, method string, params any, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}

	b.mu.Lock()
	s := b.current
	if s == nil {
		b.mu.Unlock()
		return ErrNotConnected
	}
	id := b.newID()
	ch := make(chan reply, 1)
	s.pending[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(s.pending, id)
		b.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	if err := wsjson.Write(ctx, s.conn, Envelope{Kind: KindRequest, ID: id, Method: method, Params: raw}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("%s: %w", method, r.err)
		}
		if r.env.Error != "" {
			return &RemoteError{Method: method, Message: r.env.Error}
		}
		if out == nil || len(r.env.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(r.env.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

// Close disconnects the current extension, if any.
func (b *Bridge) Close() error {
	b.mu.Lock()
	s := b.current
	b.current = nil
	b.mu.Unlock()
	if s != nil {
		b.drop(s, websocket.StatusGoingAway, "daemon shutting down")
	}
	return nil
}

// UpdateDynamicRules removes and adds declarative rules in one browser call.
func (b *Bridge) UpdateDynamicRules(ctx context.Context, removeIDs []int, add []domain.Rule) error {
	if add == nil {
		add = []domain.Rule{}
	}
	if removeIDs == nil {
		removeIDs = []int{}
	}
	return b.call(ctx, MethodUpdateDynamicRules, updateRulesParams{RemoveRuleIDs: removeIDs, AddRules: add}, nil)
}

func (b *Bridge) QueryTabs(ctx context.Context) ([]domain.Tab, error) {
	var tabs []domain.Tab
	if err := b.call(ctx, MethodQueryTabs, struct{}{}, &tabs); err != nil {
		return nil, err
	}
	return tabs, nil
}

func (b *Bridge) GetTab(ctx context.Context, id domain.TabID) (domain.Tab, error) {
	var tab domain.Tab
	if err := b.call(ctx, MethodGetTab, tabParams{TabID: id}, &tab); err != nil {
		return domain.Tab{}, err
	}
	return tab, nil
}

func (b *Bridge) UpdateTab(ctx context.Context, id domain.TabID, url string) error {
	return b.call(ctx, MethodUpdateTab, tabParams{TabID: id, URL: url}, nil)
}
