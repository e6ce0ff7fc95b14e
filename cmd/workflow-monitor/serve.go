package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marcin-skalski/workflow-monitor/internal/server"
)

var serveNoTUI bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/MCP server and the background poller",
	Long: `Run the HTTP server (POST /mcp, GET /api/snapshot, GET /healthz) and poll
every watch entry in the background to keep the cache warm.

When stdin and stdout are terminals the board is shown in the foreground and
logs go only to the log file. Quitting the board stops the server.

Examples:
  workflow-monitor serve
  workflow-monitor serve --config monitor.toml --no-tui`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoTUI, "no-tui", false, "Disable the terminal board")
}

func runServe(cmd *cobra.Command, _ []string) error {
	enableTUI := !serveNoTUI && terminalAttached()

	a, err := newApp(enableTUI)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.svc, server.Options{
		Version:       version,
		ResultSchema:  a.cfg.ResultSchema,
		UIResourceURI: a.cfg.UIResourceURI,
		CacheLen:      a.cache.Len,
		Stats:         a.svc.Stats,
	}, a.logger)
	poller := a.poller()

	a.logger.Info("workflow-monitor starting",
		"config", configPath,
		"listen", a.cfg.Listen,
		"default_repo", a.cfg.DefaultRepo,
		"watch", len(a.cfg.Watch),
		"tui", enableTUI)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, a.cfg.Listen) })
	g.Go(func() error { return poller.Run(gctx) })
	if enableTUI {
		g.Go(func() error {
			defer stop()
			return runTUI(gctx, poller, a.cfg.TUI.RefreshInterval)
		})
	}

	if err := g.Wait(); err != nil {
		a.logger.Error("workflow-monitor stopped", "err", err)
		return err
	}
	a.logger.Info("workflow-monitor stopped")
	return nil
}
