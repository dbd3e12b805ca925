// Command focusgated blocks distracting sites in the browser while a focus
// session is running in the companion application.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/focusgate/internal/focus/common/log"
	"github.com/haukened/focusgate/internal/focus/config"
	"github.com/haukened/focusgate/internal/focus/domain"
	"github.com/haukened/focusgate/internal/focus/repos/lists"
	"github.com/haukened/focusgate/internal/focus/repos/matchset"
	"github.com/haukened/focusgate/internal/focus/services/rules"
)

const appName = "focusgated"

var (
	// Version info (set via ldflags)
	Version = "0.1.0-dev"
	Commit  = "dev"
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Focus-mode site blocker for the browser",
		Long: `focusgated follows the focus state of the companion application and,
while a session is running, keeps the browser's declarative rules in line
with your block and allow lists. The browser extension connects to it over
a local WebSocket bridge.

Configuration is read from FOCUS_* environment variables.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	var jsonOutput bool
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printVersion(cmd.OutOrStdout(), jsonOutput)
		},
	}
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the daemon",
			Args:  cobra.NoArgs,
			RunE:  runDaemon,
		},
		&cobra.Command{
			Use:   "check <url>...",
			Short: "Show how the stored lists decide each URL",
			Args:  cobra.MinimumNArgs(1),
			RunE:  runCheck,
		},
		&cobra.Command{
			Use:   "rules",
			Short: "Print the rule set that would be installed while blocking",
			Args:  cobra.NoArgs,
			RunE:  runRules,
		},
		&cobra.Command{
			Use:   "lists",
			Short: "Show the stored block and allow lists",
			Args:  cobra.NoArgs,
			RunE:  runLists,
		},
		versionCmd,
	)
	return root
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		return fmt.Errorf("logging configuration error: %w", err)
	}

	log.Info(map[string]any{
		"version":       Version,
		"env":           cfg.Env,
		"log_level":     cfg.LogLevel,
		"bridge_addr":   cfg.BridgeAddr,
		"poll_interval": cfg.PollInterval.String(),
	}, "Starting focusgate daemon")

	app, err := buildApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		return err
	}
	log.Info(nil, "focusgate daemon stopped gracefully")
	return nil
}

// loadLists reads the stored lists for the offline commands.
func loadLists() (*config.AppConfig, domain.Lists, lists.StoreStats, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, domain.Lists{}, lists.StoreStats{}, fmt.Errorf("configuration error: %w", err)
	}
	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, domain.Lists{}, lists.StoreStats{}, err
	}
	defer store.Close()
	l, err := store.Load()
	if err != nil {
		return nil, domain.Lists{}, lists.StoreStats{}, fmt.Errorf("load lists: %w", err)
	}
	return cfg, l, store.Stats(), nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, l, _, err := loadLists()
	if err != nil {
		return err
	}
	opts, _, err := matchOptions(cfg)
	if err != nil {
		return err
	}
	ix := matchset.Build(l, opts)

	out := cmd.OutOrStdout()
	for _, u := range args {
		d := ix.Decide(u)
		if d.Pattern != "" {
			fmt.Fprintf(out, "%-6s %s  (%s)\n", d.Verdict, u, d.Pattern)
		} else {
			fmt.Fprintf(out, "%-6s %s\n", d.Verdict, u)
		}
	}
	for _, inv := range ix.Invalid() {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s entry %q: %v\n", inv.List, inv.Pattern, inv.Err)
	}
	return nil
}

func runRules(cmd *cobra.Command, _ []string) error {
	cfg, l, _, err := loadLists()
	if err != nil {
		return err
	}
	_, compiler, err := matchOptions(cfg)
	if err != nil {
		return err
	}
	built, skipped := rules.BuildRules(l, compiler, cfg.InterstitialURL)
	for _, s := range skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %q: %v\n", s.Pattern, s.Err)
	}
	if len(built) > cfg.MaxRules {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d rules exceed the limit of %d; nothing would be installed\n", len(built), cfg.MaxRules)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(built)
}

func runLists(cmd *cobra.Command, _ []string) error {
	cfg, l, stats, err := loadLists()
	if err != nil {
		return err
	}
	opts, _, err := matchOptions(cfg)
	if err != nil {
		return err
	}
	ix := matchset.Build(l, opts)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Blocked (%d):\n", len(l.Block))
	for _, e := range l.Block {
		fmt.Fprintf(out, "  %s\n", e)
	}
	fmt.Fprintf(out, "Allowed (%d):\n", len(l.Allow))
	for _, e := range l.Allow {
		fmt.Fprintf(out, "  %s\n", e)
	}
	for _, w := range ix.Warnings() {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if stats.Version > 0 {
		fmt.Fprintf(out, "version %d, updated %s\n", stats.Version, time.Unix(stats.UpdatedUnix, 0).UTC().Format(time.RFC3339))
	}
	return nil
}

func printVersion(w io.Writer, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(map[string]string{
			"name":    appName,
			"version": Version,
			"commit":  Commit,
		})
	}
	_, err := fmt.Fprintf(w, "%s %s (%s)\n", appName, Version, Commit)
	return err
}
