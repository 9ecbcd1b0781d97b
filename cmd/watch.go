package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cqlconn/internal/log"
	"github.com/zjrosen/cqlconn/internal/presentation"
)

var watchVerbose bool

var connectionsWatchCmd = &cobra.Command{
	Use:   "connections:watch",
	Short: "Print changes to the stored state as they happen",
	Long: `Watch the state file and print a line diff of the state document each time
another cqlconn process changes it. Runs until interrupted.

Only the file and sqlite backends can be watched. With --verbose, log entries
(reloads, watcher errors) are written to stderr as they happen.`,
	Args: cobra.NoArgs,
	RunE: runConnectionsWatch,
}

func runConnectionsWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if watchVerbose {
		stop := streamLog(ctx, cmd.ErrOrStderr())
		defer stop()
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	w, ok := store.(stateWatcher)
	if !ok {
		return fmt.Errorf("the %s backend cannot be watched", cfg.Store.Backend)
	}

	prev, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	states, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching state: %w", err)
	}
	log.Info(log.CatWatcher, "Watching state", "backend", cfg.Store.Backend, "path", cfg.Store.StatePath())

	formatter := presentation.NewFormatter(cmd.OutOrStdout())
	for state := range states {
		diff, err := presentation.DiffStates(prev, state)
		if err != nil {
			return err
		}
		if err := formatter.FormatDiff(time.Now(), diff); err != nil {
			return err
		}
		prev = state
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func init() {
	connectionsWatchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Write log entries to stderr")
	rootCmd.AddCommand(connectionsWatchCmd)
}
