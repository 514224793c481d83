// Package docbind attaches comment runs to the declarations they document.
package docbind

import (
	"strings"

	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
)

// Bind sets Doc on the stubs that follow an unbroken comment run. stubs is
// parallel to units: stubs[i] is the symbol classified from units[i], or
// nil. Attribute units between a run and its declaration are transparent.
// Inner doc comments document the enclosing container instead; those at
// file level are joined and returned, as is the comment run before a
// package clause.
func Bind(d *lang.Dialect, units []model.SourceUnit, stubs []*model.Symbol) string {
	var (
		run     []string
		rootDoc []string
		stack   []*model.Symbol
		pending *model.Symbol
	)
	for i, u := range units {
		switch u.Kind {
		case model.Whitespace:
			if strings.Count(u.Text, "\n") >= 2 {
				run = nil
			}
		case model.Comment:
			if !isInner(d, u.Text) {
				run = append(run, u.Text)
				continue
			}
			run = nil
			text := Clean(d, []string{u.Text})
			if len(stack) == 0 {
				rootDoc = append(rootDoc, text)
			} else if owner := stack[len(stack)-1]; owner != nil {
				owner.Doc = join(owner.Doc, text)
			}
		case model.Attribute:
		case model.Declaration, model.Unknown:
			if stub := stubs[i]; stub != nil && len(run) > 0 {
				stub.Doc = Clean(d, run)
			} else if stub == nil && len(run) > 0 && len(stack) == 0 && isPackageClause(d, u.Text) {
				rootDoc = append(rootDoc, Clean(d, run))
			}
			run = nil
			if u.Opens {
				pending = stubs[i]
			}
		case model.Open:
			stack = append(stack, pending)
			pending = nil
			run = nil
		case model.Close:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			run = nil
		}
	}
	return strings.Join(rootDoc, "\n")
}

func isPackageClause(d *lang.Dialect, text string) bool {
	if d.PackageClause == "" {
		return false
	}
	h, ok := d.SplitHead(strings.TrimSpace(text))
	return ok && h.Keyword == d.PackageClause
}

func join(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n" + b
}

func isInner(d *lang.Dialect, text string) bool {
	for _, p := range d.InnerDocPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

// Clean strips comment markers from a run of comments and joins their lines,
// earliest first.
func Clean(d *lang.Dialect, comments []string) string {
	var lines []string
	for _, c := range comments {
		if strings.HasPrefix(c, d.BlockComment[0]) {
			lines = append(lines, blockLines(d, c)...)
			continue
		}
		line := strings.TrimRight(c[len(longestPrefix(d, c)):], " \t\r")
		lines = append(lines, strings.TrimPrefix(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func blockLines(d *lang.Dialect, c string) []string {
	body := strings.TrimSuffix(c[len(longestPrefix(d, c)):], d.BlockComment[1])
	var out []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "*") {
			line = strings.TrimPrefix(line[1:], " ")
		}
		out = append(out, line)
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func longestPrefix(d *lang.Dialect, c string) string {
	best := ""
	for _, p := range d.DocPrefixes {
		if len(p) > len(best) && strings.HasPrefix(c, p) {
			best = p
		}
	}
	return best
}
