package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the board for every watch entry in the terminal",
	Long: `Poll the repositories listed under watch in the config file and show them
in the terminal. No HTTP server is started.

Keys: q quit, r refresh now, tab or arrows to switch repository.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if !terminalAttached() {
		return errors.New("watch needs an interactive terminal, use serve --no-tui instead")
	}

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(a.cfg.Watch) == 0 {
		return errors.New("nothing to watch, add repositories under watch in the config file")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller := a.poller()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error {
		defer stop()
		return runTUI(gctx, poller, a.cfg.TUI.RefreshInterval)
	})
	return g.Wait()
}
