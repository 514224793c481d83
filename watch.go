package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phobologic/codemap/internal/discover"
	"github.com/phobologic/codemap/internal/indexer"
	"github.com/phobologic/codemap/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Re-index files as they change",
		Long: `Monitor the project for file changes and update the map as they happen.
Press Ctrl+C to stop.

Examples:
  codemap watch                 # watch the current directory
  codemap watch ./crate         # watch a specific project
  codemap watch --debounce 1s   # wait longer for edits to settle`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) > 0 {
				dir = args[0]
			}
			if err := a.load(dir); err != nil {
				return err
			}
			if debounce > 0 {
				a.cfg.Watch.Debounce = debounce
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ix, err := a.newIndexer(st)
			if err != nil {
				return err
			}
			filter, err := discover.NewFilter(a.root, a.cfg.DiscoverOptions())
			if err != nil {
				return err
			}
			w, err := watcher.New(a.root, filter, a.cfg.Watch.Debounce)
			if err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			defer func() { _ = w.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Catch up on anything that changed while nobody was watching.
			if sum, err := ix.UpdateStale(ctx); err != nil {
				return err
			} else if sum.Files > 0 || sum.Removed > 0 {
				_, _ = fmt.Fprintf(a.stdout, "Caught up: updated %d files, removed %d\n", sum.Files, sum.Removed)
			}

			_, _ = fmt.Fprintf(a.stdout, "Watching %s for changes...\n", a.root)
			_, _ = fmt.Fprintf(a.stdout, "Debounce: %s\n", a.cfg.Watch.Debounce)
			_, _ = fmt.Fprintln(a.stdout, "Press Ctrl+C to stop")

			logger := log.New(a.stderr, "", log.LstdFlags)
			err = w.Run(ctx, func(paths []string) {
				for _, p := range paths {
					change, err := ix.UpdateFile(p)
					switch {
					case errors.Is(err, indexer.ErrUnsupported):
					case err != nil:
						logger.Printf("Warning: %s: %v", p, err)
					case change != indexer.Unchanged && !a.quiet:
						logger.Printf("%s %s", change, p)
					}
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVarP(&debounce, "debounce", "d", 0, "quiet period before re-indexing (default from config, 500ms)")
	return cmd
}
