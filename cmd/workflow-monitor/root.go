package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/marcin-skalski/workflow-monitor/internal/cache"
	"github.com/marcin-skalski/workflow-monitor/internal/config"
	"github.com/marcin-skalski/workflow-monitor/internal/daemon"
	"github.com/marcin-skalski/workflow-monitor/internal/github"
	"github.com/marcin-skalski/workflow-monitor/internal/logging"
	"github.com/marcin-skalski/workflow-monitor/internal/monitor"
	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
	"github.com/marcin-skalski/workflow-monitor/internal/tui"
)

var (
	version    = "dev"
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "workflow-monitor",
	Short: "GitHub pull request and CI dashboard",
	Long: `workflow-monitor groups a repository's open pull requests by what they
need next, lists the focused PR's recent commits with their CI state, and
summarizes its checks.

It serves that snapshot to MCP hosts (POST /mcp) and plain HTTP clients
(GET /api/snapshot), and can show it in the terminal.

The GitHub token is read from the environment variable named by
github.token_env (GITHUB_TOKEN by default).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("WORKFLOW_MONITOR_CONFIG"),
		"Path to config file, .yaml or .toml (env: WORKFLOW_MONITOR_CONFIG)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(watchCmd)
}

// app holds what every command builds from config.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
	cache  *cache.SnapshotCache
	svc    *monitor.Service
}

func newApp(tuiMode bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.Setup(logging.Options{
		File:  cfg.LogFile,
		Level: cfg.Log.Level,
		TUI:   tuiMode,
	})
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	if cfg.Token == "" {
		logger.Warn("github token not set, every request will fail until it is", "env", cfg.GitHub.TokenEnv)
	}

	gh := github.NewClient(cfg.Token, github.Options{
		Endpoint: cfg.GitHub.Endpoint,
		Timeout:  cfg.GitHub.Timeout,
	}, logger)

	c := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	svc := monitor.New(snapshot.NewFetcher(gh, logger), c, monitor.Options{
		DefaultRepo:    cfg.DefaultRepo,
		DedupeInflight: cfg.Cache.DedupeInflight,
	}, logger)

	return &app{cfg: cfg, logger: logger, closer: closer, cache: c, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.closer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}
}

func (a *app) poller() *daemon.Daemon {
	return daemon.New(a.svc, daemon.Options{
		Targets:      watchTargets(a.cfg.Watch),
		PollInterval: a.cfg.PollInterval,
		Backoff: daemon.BackoffConfig{
			Initial:        a.cfg.Backoff.Initial,
			Max:            a.cfg.Backoff.Max,
			JitterFraction: daemon.DefaultBackoff().JitterFraction,
		},
	}, a.logger)
}

func watchTargets(watch []config.WatchConfig) []daemon.Target {
	targets := make([]daemon.Target, 0, len(watch))
	for _, w := range watch {
		targets = append(targets, daemon.Target{Repo: w.Repo, PR: w.PR})
	}
	return targets
}

func terminalAttached() bool {
	return os.Getenv("WORKFLOW_MONITOR_TUI") != "0" &&
		isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// runTUI blocks until the user quits or ctx is cancelled.
func runTUI(ctx context.Context, provider tui.SnapshotProvider, refresh time.Duration) error {
	p := tea.NewProgram(tui.NewModel(provider, refresh))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Send(tea.Quit())
		case <-done:
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
