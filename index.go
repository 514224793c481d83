package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/phobologic/codemap/internal/indexer"
	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/store"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		langs       []string
		excludes    []string
		syntaxCheck bool
		noProgress  bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Index every source file under a directory",
		Long: `Scan the directory and write a fresh map to .codemap/index.db, replacing
any previous contents.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) > 0 {
				dir = args[0]
			}
			if err := a.load(dir); err != nil {
				return err
			}
			if len(langs) > 0 {
				a.cfg.Languages = langs
			}
			a.cfg.Exclude = append(a.cfg.Exclude, excludes...)
			if syntaxCheck {
				a.cfg.SyntaxCheck = true
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			st, err := store.Open(a.root)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ix, err := a.newIndexer(st)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(a.stdout, "Scanning %s...\n", a.root)

			var progress indexer.Progress
			if !a.quiet && !noProgress {
				progress = a.progressBar()
			}
			sum, err := ix.IndexAll(cmd.Context(), progress)
			if err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}

			_, _ = fmt.Fprintf(a.stdout, "Found %d files\n", sum.Files)
			_, _ = fmt.Fprintf(a.stdout, "Indexed %d symbols\n", sum.Symbols)
			if sum.Warnings > 0 {
				_, _ = fmt.Fprintf(a.stdout, "Warnings: %d (see 'codemap show <file>')\n", sum.Warnings)
			}
			if sum.Skipped > 0 || sum.Failed > 0 {
				_, _ = fmt.Fprintf(a.stdout, "Skipped %d, failed %d\n", sum.Skipped, sum.Failed)
			}
			_, _ = fmt.Fprintf(a.stdout, "Saved to %s\n", filepath.Join(a.root, store.Dir))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&langs, "lang", "l", nil, fmt.Sprintf("languages to index (%v)", lang.Names()))
	cmd.Flags().StringSliceVarP(&excludes, "exclude", "x", nil, "additional glob patterns to exclude")
	cmd.Flags().BoolVar(&syntaxCheck, "syntax-check", false, "cross-check files with the tree-sitter grammar")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

// progressBar returns an indexing progress callback drawing on stderr.
// The bar is created lazily once the file total is known.
func (a *app) progressBar() indexer.Progress {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(a.stderr),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("Indexing"),
				progressbar.OptionOnCompletion(func() {
					_, _ = fmt.Fprintln(a.stderr)
				}),
			)
		}
		_ = bar.Set(done)
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "update [file]",
		Short: "Re-index one file or every stale file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("specify a file path or use --all")
			}
			if err := a.load(""); err != nil {
				return err
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

			if all {
				sum, err := ix.UpdateStale(cmd.Context())
				if err != nil {
					return err
				}
				if sum.Files == 0 && sum.Removed == 0 && sum.Failed == 0 {
					_, _ = fmt.Fprintln(a.stdout, "All entries up to date")
					return nil
				}
				_, _ = fmt.Fprintf(a.stdout, "Updated %d files, removed %d\n", sum.Files, sum.Removed)
				if sum.Failed > 0 {
					return fmt.Errorf("%d files failed to update", sum.Failed)
				}
				return nil
			}

			rel, err := a.relPath(args[0])
			if err != nil {
				return err
			}
			change, err := ix.UpdateFile(rel)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.stdout, "%s: %s\n", rel, change)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "update all stale files")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check stored hashes against the files on disk",
		Long: `Check stored hashes against the files on disk. Exits non-zero when
anything is stale.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(""); err != nil {
				return err
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

			if len(args) > 0 {
				rel, err := a.relPath(args[0])
				if err != nil {
					return err
				}
				fresh, err := ix.ValidateFile(rel)
				if err != nil && !errors.Is(err, os.ErrNotExist) {
					return notIndexedHint(err)
				}
				if !fresh {
					return fmt.Errorf("%s is stale", rel)
				}
				_, _ = fmt.Fprintf(a.stdout, "%s is up to date\n", rel)
				return nil
			}

			stale, err := ix.Stale()
			if err != nil {
				return err
			}
			if len(stale) == 0 {
				_, _ = fmt.Fprintln(a.stdout, "All entries up to date")
				return nil
			}
			_, _ = fmt.Fprintf(a.stdout, "Stale entries (%d):\n", len(stale))
			for _, s := range stale {
				_, _ = fmt.Fprintf(a.stdout, "  %-8s %s\n", s.Reason, s.Path)
			}
			_, _ = fmt.Fprintln(a.stdout, "\nRun 'codemap update --all' to refresh")
			return fmt.Errorf("%d stale entries", len(stale))
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show map statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(""); err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			m, err := st.Manifest()
			if err != nil {
				return err
			}

			w := a.stdout
			_, _ = fmt.Fprintln(w, "CodeMap Statistics")
			_, _ = fmt.Fprintln(w, "========================================")
			_, _ = fmt.Fprintf(w, "Root: %s\n", m.Root)
			_, _ = fmt.Fprintf(w, "Version: %s\n", m.Version)
			_, _ = fmt.Fprintf(w, "Generated: %s\n", m.GeneratedAt.Format(time.RFC3339))
			if !m.Stats.LastFullIndex.IsZero() {
				_, _ = fmt.Fprintf(w, "Last full index: %s\n", m.Stats.LastFullIndex.Format(time.RFC3339))
			}
			_, _ = fmt.Fprintln(w)
			_, _ = fmt.Fprintf(w, "Total files: %d\n", m.Stats.TotalFiles)
			_, _ = fmt.Fprintf(w, "Total symbols: %d\n", m.Stats.TotalSymbols)
			_, _ = fmt.Fprintf(w, "Warnings: %d\n", m.Stats.Warnings)

			if len(m.Stats.ByDialect) > 0 {
				_, _ = fmt.Fprintln(w, "\nFiles by language:")
				dialects := make([]string, 0, len(m.Stats.ByDialect))
				for d := range m.Stats.ByDialect {
					dialects = append(dialects, d)
				}
				sort.Strings(dialects)
				for _, d := range dialects {
					_, _ = fmt.Fprintf(w, "  %s: %d\n", d, m.Stats.ByDialect[d])
				}
			}

			if len(m.Stats.ByKind) > 0 {
				_, _ = fmt.Fprintln(w, "\nSymbols by kind:")
				for _, k := range model.Kinds {
					if n := m.Stats.ByKind[k]; n > 0 {
						_, _ = fmt.Fprintf(w, "  %s: %d\n", k, n)
					}
				}
			}
			return nil
		},
	}
}
