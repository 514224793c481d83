package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/parse"
	"github.com/phobologic/codemap/internal/ranking"
	"github.com/phobologic/codemap/internal/store"
	"github.com/phobologic/codemap/internal/toon"
)

// outputFlags selects how a tree is printed.
type outputFlags struct {
	json bool
	toon bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "print JSON")
	cmd.Flags().BoolVar(&o.toon, "toon", false, "print TOON")
	cmd.MarkFlagsMutuallyExclusive("json", "toon")
}

func (o *outputFlags) writeTree(w io.Writer, path string, t *model.Tree, header string) error {
	switch {
	case o.json:
		data, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, string(data))
	case o.toon:
		_, _ = fmt.Fprintln(w, toon.EncodeTree(path, t))
	default:
		_, _ = fmt.Fprintln(w, header)
		if t.Doc != "" {
			_, _ = fmt.Fprintf(w, "  %s\n", firstLine(t.Doc))
		}
		_, _ = fmt.Fprintln(w, "\nSymbols:")
		printOutline(w, t.Symbols)
	}
	return nil
}

func printOutline(w io.Writer, symbols []*model.Symbol) {
	model.Walk(symbols, func(sym *model.Symbol, depth int) bool {
		indent := strings.Repeat("  ", depth+1)
		var b strings.Builder
		fmt.Fprintf(&b, "%s%s [%s] %s", indent, sym.Label(), sym.Kind, lineSpan(sym))
		if len(sym.Modifiers) > 0 {
			mods := make([]string, len(sym.Modifiers))
			for i, m := range sym.Modifiers {
				mods[i] = string(m)
			}
			fmt.Fprintf(&b, " (%s)", strings.Join(mods, ", "))
		}
		if sym.Target != nil {
			fmt.Fprintf(&b, " -> %s", targetLabel(sym.Target))
		}
		_, _ = fmt.Fprintln(w, b.String())
		if sym.Signature != "" && sym.Signature != sym.Label() {
			_, _ = fmt.Fprintf(w, "%s  %s\n", indent, sym.Signature)
		}
		if sym.Doc != "" {
			_, _ = fmt.Fprintf(w, "%s  # %s\n", indent, firstLine(sym.Doc))
		}
		return true
	})
}

func lineSpan(sym *model.Symbol) string {
	if sym.StartLine == sym.EndLine {
		return fmt.Sprintf("L%d", sym.StartLine)
	}
	return fmt.Sprintf("L%d-%d", sym.StartLine, sym.EndLine)
}

func targetLabel(t *model.Target) string {
	if t.Resolved {
		return t.ID
	}
	return t.Name + " (unresolved)"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func newParseCmd(a *app) *cobra.Command {
	var (
		out         outputFlags
		dialectName string
		strict      bool
		syntaxCheck bool
	)

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Print the symbol tree of one file without touching the map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if dialectName == "" {
				dialectName = lang.ForExtension(filepath.Ext(path))
				if dialectName == "" {
					return fmt.Errorf("%s: unsupported file type (use --lang)", path)
				}
			}
			d, err := lang.Get(dialectName)
			if err != nil {
				return err
			}

			source, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			t, err := parse.Source(d, source)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if syntaxCheck {
				t.Warnings = append(t.Warnings, parse.SyntaxCheck(d, d.NewParser(), source)...)
			}

			header := fmt.Sprintf("File: %s (%s, %d lines)", path, d.Name, store.CountLines(source))
			if err := out.writeTree(a.stdout, path, t, header); err != nil {
				return err
			}
			for _, w := range t.Warnings {
				a.warnf("Warning: %s:%d: %s: %s\n", path, w.Line, w.Kind, w.Message)
			}
			if strict && len(t.Warnings) > 0 {
				return fmt.Errorf("%s: %d warnings", path, len(t.Warnings))
			}
			return nil
		},
	}

	out.register(cmd)
	cmd.Flags().StringVarP(&dialectName, "lang", "l", "", "dialect to parse as (default from extension)")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero if the tree has warnings")
	cmd.Flags().BoolVar(&syntaxCheck, "syntax-check", false, "cross-check with the tree-sitter grammar")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Show the stored structure of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(""); err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			rel, err := a.relPath(args[0])
			if err != nil {
				return err
			}
			e, err := st.GetFile(rel)
			if err != nil {
				return notIndexedHint(err)
			}

			header := fmt.Sprintf("File: %s (hash: %s)\nLines: %d\nLanguage: %s", rel, e.Hash, e.Lines, e.Dialect)
			return out.writeTree(a.stdout, rel, e.Tree, header)
		},
	}

	out.register(cmd)
	return cmd
}

func newFindCmd(a *app) *cobra.Command {
	var (
		kind   string
		limit  int
		asToon bool
	)

	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Find symbols by name (case-insensitive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := ranking.Query{Text: args[0], Limit: limit}
			if kind != "" {
				k, ok := model.ParseKind(kind)
				if !ok {
					return fmt.Errorf("unknown kind %q (want one of %v)", kind, model.Kinds)
				}
				q.Kind = k
			}

			if err := a.load(""); err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			entries, err := st.Files()
			if err != nil {
				return err
			}
			matches := ranking.Search(entries, q)

			if asToon {
				_, _ = fmt.Fprintln(a.stdout, toon.EncodeMatches(matches))
				return nil
			}
			if len(matches) == 0 {
				_, _ = fmt.Fprintf(a.stdout, "No symbols found matching %q\n", args[0])
				return nil
			}
			for _, m := range matches {
				_, _ = fmt.Fprintf(a.stdout, "%s:%d-%d [%s] %s\n",
					m.Path, m.Symbol.StartLine, m.Symbol.EndLine, m.Symbol.Kind, m.Symbol.ID)
				if m.Symbol.Signature != "" && m.Symbol.Signature != m.Symbol.ID {
					_, _ = fmt.Fprintf(a.stdout, "  %s\n", m.Symbol.Signature)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "type", "t", "", "filter by kind (type, contract, enumeration, implementation, function, namespace, unknown)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of results (0 for all)")
	cmd.Flags().BoolVar(&asToon, "toon", false, "print TOON")
	return cmd
}

var errLineRange = errors.New("invalid format, use: path/to/file.rs:45-89")

// parseLineRange splits "path:start-end" (or "path:line").
func parseLineRange(arg string) (path string, start, end int, err error) {
	i := strings.LastIndexByte(arg, ':')
	if i <= 0 || i == len(arg)-1 {
		return "", 0, 0, errLineRange
	}
	path, span := arg[:i], arg[i+1:]
	lo, hi, found := strings.Cut(span, "-")
	if !found {
		hi = lo
	}
	start, err1 := strconv.Atoi(lo)
	end, err2 := strconv.Atoi(hi)
	if err1 != nil || err2 != nil {
		return "", 0, 0, errLineRange
	}
	if start < 1 || end < start {
		return "", 0, 0, fmt.Errorf("invalid line range %d-%d", start, end)
	}
	return path, start, end, nil
}

func newLinesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lines <file:start-end>",
		Short: "List the symbols overlapping a line range",
		Long: `List the symbols overlapping a line range and check that the file has
not changed since it was indexed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, start, end, err := parseLineRange(args[0])
			if err != nil {
				return err
			}
			if err := a.load(""); err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			rel, err := a.relPath(path)
			if err != nil {
				return err
			}
			e, err := st.GetFile(rel)
			if err != nil {
				return notIndexedHint(err)
			}

			ix, err := a.newIndexer(st)
			if err != nil {
				return err
			}
			if fresh, err := ix.ValidateFile(rel); err != nil || !fresh {
				a.warnf("Warning: %s has changed since indexing, line range may be stale (run 'codemap update %s')\n", rel, rel)
			} else {
				_, _ = fmt.Fprintf(a.stdout, "Lines %d-%d in %s are valid\n", start, end, rel)
			}
			if end > e.Lines {
				a.warnf("Warning: %s has only %d lines\n", rel, e.Lines)
			}

			matches := ranking.InRange(e, start, end)
			if len(matches) == 0 {
				_, _ = fmt.Fprintln(a.stdout, "No symbols in range")
				return nil
			}
			depth := map[string]int{}
			for _, m := range matches {
				d := 0
				if m.Parent != "" {
					d = depth[m.Parent] + 1
				}
				depth[m.Symbol.ID] = d
				_, _ = fmt.Fprintf(a.stdout, "%s%s [%s] %s\n",
					strings.Repeat("  ", d+1), m.Symbol.Label(), m.Symbol.Kind, lineSpan(m.Symbol))
			}
			return nil
		},
	}
}
