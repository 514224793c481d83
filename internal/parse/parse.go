// Package parse runs the symbol extraction pipeline on one source file:
// scan, classify, bind documentation, build the tree.
package parse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/codemap/internal/classify"
	"github.com/phobologic/codemap/internal/docbind"
	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/scan"
	"github.com/phobologic/codemap/internal/tree"
)

// ErrInvalidInput reports source that is not decodable text.
var ErrInvalidInput = errors.New("input is not valid UTF-8 text")

// Source builds the symbol tree for src. Malformed source still yields a
// tree with warnings; the only error is ErrInvalidInput.
func Source(d *lang.Dialect, src []byte) (*model.Tree, error) {
	if err := Validate(src); err != nil {
		return nil, err
	}

	units := scan.Scan(d, src)
	stubs := make([]*model.Symbol, len(units))
	var attrs []string
	for i, u := range units {
		switch u.Kind {
		case model.Whitespace, model.Comment:
		case model.Attribute:
			// Inner attributes (#![...]) apply to the enclosing item.
			if !strings.HasPrefix(u.Text, "#!") {
				attrs = append(attrs, lang.CollapseWhitespace(u.Text))
			}
		case model.Declaration, model.Unknown:
			if sym, ok := classify.Unit(d, u, attrs); ok {
				stubs[i] = sym
			}
			attrs = nil
		default:
			attrs = nil
		}
	}

	doc := docbind.Bind(d, units, stubs)
	t := tree.Build(d, units, stubs)
	t.Doc = doc
	return t, nil
}

// Validate returns ErrInvalidInput, wrapped with the offending byte offset,
// if src contains NUL bytes or invalid UTF-8.
func Validate(src []byte) error {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		return fmt.Errorf("%w: NUL byte at offset %d", ErrInvalidInput, i)
	}
	for i := 0; i < len(src); {
		r, size := utf8.DecodeRune(src[i:])
		if r == utf8.RuneError && size == 1 {
			return fmt.Errorf("%w: invalid byte at offset %d", ErrInvalidInput, i)
		}
		i += size
	}
	return nil
}

// SyntaxCheck parses src with the dialect's tree-sitter grammar and returns
// one warning per line holding a syntax error. The parser must be created
// for the same dialect and not shared between goroutines.
func SyntaxCheck(d *lang.Dialect, parser *sitter.Parser, src []byte) []model.Warning {
	if len(src) == 0 {
		return nil
	}
	query, err := d.ErrorQuery()
	if err != nil {
		return nil
	}

	t, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil
	}
	defer t.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, t.RootNode())

	var warnings []model.Warning
	seen := map[int]bool{}
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range match.Captures {
			line := int(c.Node.StartPoint().Row) + 1
			if seen[line] {
				continue
			}
			seen[line] = true
			warnings = append(warnings, model.Warning{
				Kind:    model.SyntaxError,
				Line:    line,
				Message: "syntax error near " + snippet(nodeText(c.Node, src)),
			})
		}
	}
	return warnings
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

func snippet(s string) string {
	s = lang.CollapseWhitespace(s)
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return fmt.Sprintf("%q", s)
}
