// Package ranking implements ranked symbol search over stored symbol trees.
package ranking

import (
	"sort"
	"strings"

	"github.com/phobologic/codemap/internal/discover"
	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/store"
)

// Match scores.
const (
	ScoreSubstring = 1
	ScorePrefix    = 2
	ScoreExact     = 3
)

// Match is one symbol found by a search.
type Match struct {
	Path   string
	Symbol *model.Symbol
	// Parent is the ID of the enclosing symbol, "" at file level.
	Parent string
	Score  int
	Test   bool
}

// Query selects symbols. Kind "" matches every kind; Limit <= 0 means no
// limit.
type Query struct {
	Text  string
	Kind  model.Kind
	Limit int
}

// Search matches q.Text case-insensitively against symbol labels across
// entries. Results are ordered by score (exact, prefix, substring), then
// non-test files before test files, then by path and start line.
func Search(entries []*store.FileEntry, q Query) []Match {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil
	}

	var matches []Match
	for _, e := range entries {
		if e == nil || e.Tree == nil {
			continue
		}
		test := discover.IsTestFile(e.Path)
		walkParents(e.Tree.Symbols, "", func(sym *model.Symbol, parent string) {
			if q.Kind != "" && sym.Kind != q.Kind {
				return
			}
			score := scoreName(strings.ToLower(sym.Label()), needle)
			if score == 0 {
				return
			}
			matches = append(matches, Match{Path: e.Path, Symbol: sym, Parent: parent, Score: score, Test: test})
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := &matches[i], &matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Test != b.Test {
			return !a.Test
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Symbol.StartLine < b.Symbol.StartLine
	})

	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches
}

func scoreName(name, needle string) int {
	switch {
	case name == needle:
		return ScoreExact
	case strings.HasPrefix(name, needle):
		return ScorePrefix
	case strings.Contains(name, needle):
		return ScoreSubstring
	}
	return 0
}

// InRange returns the symbols of e whose line span overlaps [start, end],
// outermost first in source order.
func InRange(e *store.FileEntry, start, end int) []Match {
	if e == nil || e.Tree == nil || end < start {
		return nil
	}
	var matches []Match
	walkParents(e.Tree.Symbols, "", func(sym *model.Symbol, parent string) {
		if sym.StartLine <= end && sym.EndLine >= start {
			matches = append(matches, Match{Path: e.Path, Symbol: sym, Parent: parent})
		}
	})
	return matches
}

func walkParents(symbols []*model.Symbol, parent string, fn func(*model.Symbol, string)) {
	for _, s := range symbols {
		fn(s, parent)
		walkParents(s.Children, s.ID, fn)
	}
}
