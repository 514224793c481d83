// codemap builds a persistent, language-agnostic map of the symbols declared
// in a project's source files.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/codemap/internal/config"
	"github.com/phobologic/codemap/internal/indexer"
	"github.com/phobologic/codemap/internal/store"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(&app{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

// app holds the state shared by all subcommands of one invocation.
type app struct {
	stdout, stderr io.Writer

	dir        string
	configPath string
	quiet      bool

	root string
	cfg  *config.Config
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codemap",
		Short: "Index source files into a navigable symbol map",
		Long: `codemap scans Rust, Swift and Go sources and records, per file, the types,
contracts, implementations, enumerations, functions and namespaces they
declare, with documentation and line spans.

Example usage:
  codemap init                  # index the current directory
  codemap find User             # locate a symbol
  codemap show src/lib.rs       # outline one file
  codemap update --all          # refresh changed files`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("codemap {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&a.dir, "dir", "C", "", "project root (default is current directory)")
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default is <root>/"+config.FileName+")")
	cmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "suppress warnings and progress output")

	cmd.AddCommand(
		newInitCmd(a),
		newUpdateCmd(a),
		newParseCmd(a),
		newShowCmd(a),
		newFindCmd(a),
		newValidateCmd(a),
		newLinesCmd(a),
		newStatsCmd(a),
		newWatchCmd(a),
		newInstallHooksCmd(a),
	)
	return cmd
}

// load resolves the project root and reads its configuration. A non-empty
// dir overrides --dir.
func (a *app) load(dir string) error {
	if dir == "" {
		dir = a.dir
	}
	if dir == "" {
		dir = "."
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}
	a.root = root

	if a.configPath != "" {
		a.cfg, err = config.Load(a.configPath)
	} else {
		a.cfg, err = config.LoadFromDir(root)
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return nil
}

// openStore opens the existing map, adopting the languages it was built
// with.
func (a *app) openStore() (*store.Store, error) {
	st, err := store.OpenExisting(a.root)
	if err != nil {
		return nil, err
	}
	m, err := st.Manifest()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if len(m.Languages) > 0 {
		a.cfg.Languages = m.Languages
	}
	return st, nil
}

func (a *app) newIndexer(st *store.Store) (*indexer.Indexer, error) {
	return indexer.New(st, a.cfg, a.warnings())
}

func (a *app) warnings() io.Writer {
	if a.quiet {
		return io.Discard
	}
	return a.stderr
}

func (a *app) warnf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.warnings(), format, args...)
}

// relPath converts a path given on the command line into a slash-separated
// path relative to the project root.
func (a *app) relPath(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(p) {
		// Paths that exist relative to the root win over the working directory.
		if _, err := os.Stat(filepath.Join(a.root, p)); err == nil || a.dir != "" {
			abs = filepath.Join(a.root, p)
		} else if abs, err = filepath.Abs(p); err != nil {
			return "", err
		}
	}
	rel, err := filepath.Rel(a.root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: outside project root %s", p, a.root)
	}
	return filepath.ToSlash(rel), nil
}

// notIndexedHint decorates store lookup errors with the command that fixes
// them.
func notIndexedHint(err error) error {
	if errors.Is(err, store.ErrNotIndexed) {
		return fmt.Errorf("%w (run 'codemap update <file>' to index it)", err)
	}
	return err
}
