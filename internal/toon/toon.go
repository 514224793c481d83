// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/ranking"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// EncodeTree converts one file's symbol tree into TOON format. Symbols are
// listed depth-first with their parent ID so the nesting can be rebuilt.
func EncodeTree(path string, t *model.Tree) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("file: %s", encodeValue(path)))
	parts = append(parts, fmt.Sprintf("dialect: %s", encodeValue(t.Dialect)))
	if t.Doc != "" {
		parts = append(parts, fmt.Sprintf("doc: %s", encodeValue(t.Doc)))
	}

	var symbolRows, implRows [][]string
	walkParents(t.Symbols, "", func(sym *model.Symbol, parent string) {
		symbolRows = append(symbolRows, []string{
			sym.ID,
			string(sym.Kind),
			parent,
			lineSpan(sym.StartLine, sym.EndLine),
			joinModifiers(sym.Modifiers),
			sym.Signature,
			sym.Doc,
		})
		if sym.Target != nil {
			contract := ""
			if sym.Contract != nil {
				contract = targetRef(sym.Contract)
			}
			implRows = append(implRows, []string{sym.ID, targetRef(sym.Target), contract})
		}
	})
	parts = append(parts, formatTabular("symbols",
		[]string{"id", "kind", "parent", "lines", "modifiers", "signature", "doc"}, symbolRows))

	if len(implRows) > 0 {
		parts = append(parts, formatTabular("implementations", []string{"id", "target", "contract"}, implRows))
	}

	if len(t.Warnings) > 0 {
		var warnRows [][]string
		for i := range t.Warnings {
			w := &t.Warnings[i]
			warnRows = append(warnRows, []string{
				string(w.Kind),
				fmt.Sprintf("%d", w.Line),
				w.Symbol,
				w.Message,
			})
		}
		parts = append(parts, formatTabular("warnings", []string{"kind", "line", "symbol", "message"}, warnRows))
	}

	return strings.Join(parts, "\n")
}

// EncodeMatches converts search results into a TOON table.
func EncodeMatches(matches []ranking.Match) string {
	var rows [][]string
	for i := range matches {
		m := &matches[i]
		rows = append(rows, []string{
			m.Path,
			m.Symbol.ID,
			string(m.Symbol.Kind),
			lineSpan(m.Symbol.StartLine, m.Symbol.EndLine),
			m.Symbol.Signature,
		})
	}
	return formatTabular("matches", []string{"file", "id", "kind", "lines", "signature"}, rows)
}

func walkParents(symbols []*model.Symbol, parent string, fn func(*model.Symbol, string)) {
	for _, s := range symbols {
		fn(s, parent)
		walkParents(s.Children, s.ID, fn)
	}
}

func lineSpan(start, end int) string {
	if start == end {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}

func joinModifiers(mods []model.Modifier) string {
	s := make([]string, len(mods))
	for i, m := range mods {
		s[i] = string(m)
	}
	return strings.Join(s, " ")
}

// targetRef renders a target as its resolved ID, or "?name" when unresolved.
func targetRef(t *model.Target) string {
	if t.Resolved {
		return t.ID
	}
	return "?" + t.Name
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
