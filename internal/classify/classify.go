// Package classify maps declaration units to symbol stubs.
package classify

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/scan"
)

// Unit classifies one Declaration or Unknown unit. attrs are the attribute
// markers that preceded it. It returns false for units that declare nothing
// (imports, constants, bare semicolons). Units that match no declaration
// shape come back as UnknownKind symbols.
func Unit(d *lang.Dialect, u model.SourceUnit, attrs []string) (*model.Symbol, bool) {
	text := strings.TrimSpace(scan.StripComments(d, u.Text))
	if u.Kind == model.Unknown {
		return unknown(u.Text, attrs), true
	}
	if u.Kind != model.Declaration || text == "" || text == ";" {
		return nil, false
	}

	h, ok := d.SplitHead(text)
	if !ok {
		return unknown(u.Text, attrs), true
	}
	if h.Ignored {
		return nil, false
	}

	kind := d.Keywords[h.Keyword]
	if d.KindFor != nil {
		if kind, ok = d.KindFor(h.Keyword, h.Rest); !ok {
			return nil, false
		}
	}

	sym := &model.Symbol{Kind: kind}
	sym.Attributes = append(sym.Attributes, attrs...)
	sym.Attributes = append(sym.Attributes, h.Attributes...)
	for _, m := range h.Modifiers {
		if known, ok := d.Modifiers[m]; ok {
			sym.AddModifier(known)
			continue
		}
		sym.AddModifier(model.Modifier(m))
	}

	rest := strings.TrimSpace(h.Rest)
	switch sym.Kind {
	case model.Function:
		recv, mut := "", false
		if d.Receiver != nil {
			recv, mut, rest = d.Receiver(rest)
		}
		if d.SelfNamed[h.Keyword] {
			sym.Name = h.Keyword
			rest = h.Keyword + rest
		} else {
			sym.Name = leadingName(rest, true)
		}
		sym.Signature = lang.CollapseWhitespace(head(rest))
		if hasTopLevelWord(sym.Signature, "async") {
			sym.AddModifier(model.Async)
		}
		if mut || (d.MutSelf != nil && d.MutSelf(params(sym.Signature))) {
			sym.AddModifier(model.MutSelf)
		}
		if recv != "" {
			sym.Target = &model.Target{Name: lang.BaseName(recv), Text: recv}
		}
	case model.Type, model.Enumeration:
		sym.Name = leadingName(rest, false)
		sig := lang.CollapseWhitespace(strings.TrimSuffix(rest, ";"))
		sym.Signature = strings.ReplaceAll(sig, ", }", " }")
	case model.Contract, model.Namespace:
		sym.Name = leadingName(rest, false)
		sym.Signature = lang.CollapseWhitespace(strings.TrimSuffix(rest, ";"))
	case model.Implementation:
		target, contract := d.SplitImpl(h.Rest)
		sym.Signature = lang.CollapseWhitespace(h.Keyword + strings.TrimSuffix(strings.TrimRight(h.Rest, " \t\r\n"), ";"))
		sym.Target = &model.Target{Name: lang.BaseName(target), Text: lang.CollapseWhitespace(target)}
		if contract != "" {
			sym.Contract = &model.Target{Name: lang.BaseName(contract), Text: lang.CollapseWhitespace(contract)}
		}
	}
	if d.ExportedByCase && exported(sym.Name) {
		sym.AddModifier(model.Public)
	}
	return sym, true
}

func exported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func unknown(text string, attrs []string) *model.Symbol {
	first := strings.TrimSpace(text)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	sym := &model.Symbol{
		Kind:      model.UnknownKind,
		Signature: lang.CollapseWhitespace(first),
	}
	sym.Attributes = append(sym.Attributes, attrs...)
	return sym
}

// leadingName reads the identifier at the start of s. Functions may be
// named by an operator ("==", "+").
func leadingName(s string, operators bool) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "`") {
		if end := strings.IndexByte(s[1:], '`'); end >= 0 {
			return s[1 : end+1]
		}
	}
	i := 0
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	if i > 0 || !operators {
		return s[:i]
	}
	for i < len(s) && !strings.ContainsRune(" \t\n(<", rune(s[i])) {
		i++
	}
	return s[:i]
}

// head cuts a declaration at its body or terminating semicolon.
func head(s string) string {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '"':
			for i++; i < len(s) && s[i] != '"'; i++ {
				if s[i] == '\\' {
					i++
				}
			}
		case '{', ';':
			if depth == 0 {
				return s[:i]
			}
		}
	}
	return s
}

// params returns the first parenthesized group of a signature.
func params(sig string) string {
	start := strings.IndexByte(sig, '(')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(sig); i++ {
		switch sig[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return sig[start : i+1]
			}
		}
	}
	return sig[start:]
}

// hasTopLevelWord reports whether word appears in s outside any brackets.
func hasTopLevelWord(s, word string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '<':
			depth++
			continue
		case ')', ']':
			depth--
			continue
		case '>':
			if i == 0 || s[i-1] != '-' {
				depth--
			}
			continue
		}
		if depth != 0 || !strings.HasPrefix(s[i:], word) {
			continue
		}
		if i > 0 && isIdentByte(s[i-1]) {
			continue
		}
		if end := i + len(word); end < len(s) && isIdentByte(s[end]) {
			continue
		}
		return true
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c >= 0x80
}
