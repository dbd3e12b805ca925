package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/focusgate/internal/focus/common/clock"
	"github.com/haukened/focusgate/internal/focus/common/log"
	"github.com/haukened/focusgate/internal/focus/config"
	"github.com/haukened/focusgate/internal/focus/gateways/bridge"
	"github.com/haukened/focusgate/internal/focus/gateways/status"
	"github.com/haukened/focusgate/internal/focus/pattern"
	"github.com/haukened/focusgate/internal/focus/repos/lists"
	"github.com/haukened/focusgate/internal/focus/repos/lists/bolt"
	"github.com/haukened/focusgate/internal/focus/repos/matchset"
	"github.com/haukened/focusgate/internal/focus/repos/matchset/bloom"
	"github.com/haukened/focusgate/internal/focus/repos/session"
	"github.com/haukened/focusgate/internal/focus/services/engine"
	"github.com/haukened/focusgate/internal/focus/services/poller"
	"github.com/haukened/focusgate/internal/focus/services/rules"
	"github.com/haukened/focusgate/internal/focus/services/tabs"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

// Application holds all the components of the daemon.
type Application struct {
	config  *config.AppConfig
	store   lists.Store
	engine  *engine.Engine
	manager *rules.Manager
	poller  *poller.Poller
	bridge  *bridge.Bridge
	server  *http.Server

	listener net.Listener
	ready    chan struct{}
}

// openStore creates the database directory when needed.
func openStore(path string) (lists.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	store, err := bolt.New(path)
	if err != nil {
		return nil, fmt.Errorf("open list database %s: %w", path, err)
	}
	return store, nil
}

// matchOptions builds the compiler and bloom settings shared by the daemon
// and the offline commands.
func matchOptions(cfg *config.AppConfig) (matchset.Options, pattern.Compiler, error) {
	compiler, err := pattern.NewCachedCompiler(cfg.MatcherCacheSize)
	if err != nil {
		return matchset.Options{}, nil, fmt.Errorf("create pattern cache: %w", err)
	}
	return matchset.Options{
		Compiler: compiler,
		Factory:  bloom.NewFactory(),
		FPRate:   cfg.BloomFPRate,
	}, compiler, nil
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := clock.RealClock{}
	logger := log.GetLogger()

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	opts, compiler, err := matchOptions(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	state := engine.NewState(opts)

	statusClient, err := status.NewClient(status.Options{URL: cfg.StatusURL, Timeout: cfg.StatusTimeout})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create status client: %w", err)
	}

	var eng *engine.Engine
	br := bridge.New(bridge.Options{
		OriginPatterns: cfg.BridgeOrigins,
		Logger:         logger,
		OnConnect: func(ctx context.Context) {
			if err := eng.Resync(ctx); err != nil {
				log.Warn(map[string]any{"error": err}, "Resync after bridge connect failed")
			}
		},
	})

	tracker := tabs.NewTracker(tabs.Options{
		Browser:         br,
		Records:         session.New(),
		State:           state,
		Clock:           clk,
		InterstitialURL: cfg.InterstitialURL,
		LookupAttempts:  cfg.LookupAttempts,
		LookupDelay:     cfg.LookupDelay,
		Logger:          logger,
	})

	manager := rules.NewManager(rules.Options{
		Installer:       br,
		Restorer:        tracker,
		Compiler:        compiler,
		InterstitialURL: cfg.InterstitialURL,
		MaxRules:        cfg.MaxRules,
		Logger:          logger,
	})

	eng = engine.New(engine.Options{
		State:  state,
		Lists:  store,
		Rules:  manager,
		Tabs:   tracker,
		Logger: logger,
	})
	br.SetHandler(eng)

	p := poller.New(poller.Options{
		Source:   statusClient,
		Sink:     eng,
		Clock:    clk,
		Interval: cfg.PollInterval,
		Logger:   logger,
	})

	mux := http.NewServeMux()
	mux.Handle(bridge.Path, br)
	if path, ok := servedInterstitialPath(cfg.InterstitialURL, cfg.BridgeAddr); ok {
		mux.Handle(path, bridge.InterstitialHandler())
	}

	log.Info(map[string]any{
		"db":           cfg.DBPath,
		"status_url":   cfg.StatusURL,
		"interstitial": cfg.InterstitialURL,
		"max_rules":    cfg.MaxRules,
	}, "Application configured")

	return &Application{
		config:  cfg,
		store:   store,
		engine:  eng,
		manager: manager,
		poller:  p,
		bridge:  br,
		server:  &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout},
		ready:   make(chan struct{}),
	}, nil
}

// servedInterstitialPath returns the path to serve the interstitial page on
// when the configured URL points at the bridge listener.
func servedInterstitialPath(interstitial, bridgeAddr string) (string, bool) {
	u, err := url.Parse(interstitial)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	if u.Host != bridgeAddr {
		return "", false
	}
	if u.Path == "" || u.Path == "/" || u.Path == bridge.Path {
		return "", false
	}
	return u.Path, true
}

// Addr returns the bridge listener address once Run has bound it.
func (app *Application) Addr() string {
	<-app.ready
	if app.listener == nil {
		return ""
	}
	return app.listener.Addr().String()
}

// Run serves the bridge and polls the status endpoint until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	defer func() {
		if err := app.store.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error closing list database")
		}
	}()

	ln, err := net.Listen("tcp", app.config.BridgeAddr)
	if err != nil {
		close(app.ready)
		return fmt.Errorf("failed to listen on %s: %w", app.config.BridgeAddr, err)
	}
	app.listener = ln
	close(app.ready)

	app.engine.Start(ctx)

	log.Info(map[string]any{"address": ln.Addr().String(), "path": bridge.Path}, "Browser bridge listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.poller.Run(gctx)
	})
	g.Go(func() error {
		if err := app.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bridge server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(nil, "Shutdown initiated")
		return app.shutdown()
	})

	return g.Wait()
}

// shutdown lifts any active blocking while the extension is still attached,
// then closes the bridge and the HTTP server.
func (app *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if app.bridge.Connected() {
		if err := app.engine.SetFocusing(ctx, false); err != nil {
			log.Warn(map[string]any{"error": err}, "Error lifting blocking during shutdown")
		}
	}
	_ = app.bridge.Close()

	if err := app.server.Shutdown(ctx); err != nil {
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout, "error": err}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info(nil, "Graceful shutdown completed")
	return nil
}
