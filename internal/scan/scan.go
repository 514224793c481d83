// Package scan splits source text into declaration-level lexical units
// without a grammar. Every byte of the input belongs to exactly one unit.
package scan

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

type scanner struct {
	d     *lang.Dialect
	src   []byte
	pos   int
	line  int
	units []model.SourceUnit
}

// Scan returns the units of src in order. It never fails: input it cannot
// delimit becomes an Unknown unit running to the end of src.
func Scan(d *lang.Dialect, src []byte) []model.SourceUnit {
	s := &scanner{d: d, src: src, line: 1}
	if bytes.HasPrefix(src, bom) {
		s.emit(model.Whitespace, len(bom), false)
	}
	for s.pos < len(s.src) {
		s.next()
	}
	return s.units
}

func (s *scanner) next() {
	i := s.pos
	c := s.src[i]
	switch {
	case isSpace(c):
		j := i
		for j < len(s.src) && isSpace(s.src[j]) {
			j++
		}
		s.emit(model.Whitespace, j, false)
	case s.commentAt(i):
		end := s.skipToken(i)
		if end < 0 {
			s.emit(model.Unknown, len(s.src), false)
			return
		}
		s.emit(model.Comment, end, false)
	case s.attributeAt(i):
		end := s.attributeEnd(i)
		if end < 0 {
			s.emit(model.Unknown, len(s.src), false)
			return
		}
		s.emit(model.Attribute, end, false)
	case c == '}':
		s.emit(model.Close, i+1, false)
	default:
		s.declaration()
	}
}

func (s *scanner) emit(kind model.UnitKind, end int, opens bool) {
	text := string(s.src[s.pos:end])
	s.units = append(s.units, model.SourceUnit{
		Kind:  kind,
		Start: s.pos,
		End:   end,
		Line:  s.line,
		Text:  text,
		Opens: opens,
	})
	s.line += strings.Count(text, "\n")
	s.pos = end
}

// declaration reads one declaration starting at s.pos. It ends after a
// top-level ';', before a top-level '}', after an opaque body, before the
// '{' of a container body, or at a newline in newline-terminated dialects.
func (s *scanner) declaration() {
	start := s.pos
	depth := 0
	for k := start; k < len(s.src); {
		c := s.src[k]
		switch {
		case c == '(' || c == '[' || (c == '{' && depth > 0):
			depth++
			k++
		case c == ')' || c == ']' || (c == '}' && depth > 0):
			if depth > 0 {
				depth--
			}
			k++
		case c == ';' && depth == 0:
			s.emit(model.Declaration, k+1, false)
			return
		case c == '}':
			s.emit(model.Declaration, k, false)
			return
		case c == '{':
			if s.d.IsContainerHead(StripComments(s.d, string(s.src[start:k]))) {
				s.emit(model.Declaration, k, true)
				s.emit(model.Open, k+1, false)
				return
			}
			end := s.balancedEnd(k, '{', '}')
			if end < 0 {
				s.emit(model.Unknown, len(s.src), false)
				return
			}
			s.emit(model.Declaration, end, false)
			return
		case c == '\n' && depth == 0 && s.d.NewlineTerminated && !s.continues(k+1):
			s.emit(model.Declaration, k, false)
			return
		default:
			next := s.skipToken(k)
			if next < 0 {
				s.emit(model.Unknown, len(s.src), false)
				return
			}
			if next == k {
				next++
			}
			k = next
		}
	}
	if s.d.NewlineTerminated {
		s.emit(model.Declaration, len(s.src), false)
		return
	}
	s.emit(model.Unknown, len(s.src), false)
}

// continues reports whether the token after a newline carries on the
// current declaration ("-> Int", "where T: P", an opening brace).
func (s *scanner) continues(i int) bool {
	for i < len(s.src) && isSpace(s.src[i]) {
		i++
	}
	if i >= len(s.src) {
		return false
	}
	switch s.src[i] {
	case '{', '.', ':', '=', ',':
		return true
	}
	if bytes.HasPrefix(s.src[i:], []byte("->")) {
		return true
	}
	return s.d.ContinuationWords[string(s.src[i:identEnd(s.src, i)])]
}

func (s *scanner) commentAt(i int) bool {
	return hasPrefixAt(s.src, i, s.d.LineComment) || hasPrefixAt(s.src, i, s.d.BlockComment[0])
}

func (s *scanner) attributeAt(i int) bool {
	switch s.d.Attributes {
	case lang.BracketAttributes:
		return hasPrefixAt(s.src, i, "#[") || hasPrefixAt(s.src, i, "#![")
	case lang.AtAttributes:
		return s.src[i] == '@' && i+1 < len(s.src) && isIdentStart(s.src[i+1])
	}
	return false
}

func (s *scanner) attributeEnd(i int) int {
	if s.d.Attributes == lang.AtAttributes {
		j := identEnd(s.src, i+1)
		if j < len(s.src) && s.src[j] == '(' {
			return s.balancedEnd(j, '(', ')')
		}
		return j
	}
	return s.balancedEnd(bytes.IndexByte(s.src[i:], '[')+i, '[', ']')
}

// balancedEnd returns the index just past the delimiter closing src[open],
// or -1 if input ends first. Literals and comments are skipped.
func (s *scanner) balancedEnd(open int, o, c byte) int {
	depth := 0
	for i := open; i < len(s.src); {
		switch s.src[i] {
		case o:
			depth++
			i++
			continue
		case c:
			depth--
			i++
			if depth == 0 {
				return i
			}
			continue
		}
		next := s.skipToken(i)
		if next < 0 {
			return -1
		}
		if next == i {
			next++
		}
		i = next
	}
	return -1
}

// skipToken skips the comment, literal or identifier starting at i. It
// returns i when none starts there and -1 when one runs past the input.
func (s *scanner) skipToken(i int) int {
	src, d := s.src, s.d
	c := src[i]
	switch {
	case hasPrefixAt(src, i, d.LineComment):
		if end := bytes.IndexByte(src[i:], '\n'); end >= 0 {
			return i + end
		}
		return len(src)
	case hasPrefixAt(src, i, d.BlockComment[0]):
		return s.blockCommentEnd(i)
	case c == '"':
		return s.stringEnd(i, 0, true)
	case c == '#' && d.HashRawStrings:
		n := countByte(src, i, '#')
		if i+n < len(src) && src[i+n] == '"' {
			return s.stringEnd(i+n, n, false)
		}
		return i
	case c == '`' && d.BacktickStrings:
		if end := bytes.IndexByte(src[i+1:], '`'); end >= 0 {
			return i + end + 2
		}
		return -1
	case c == '\'' && d.CharLiterals:
		return charEnd(src, i)
	case isIdentStart(c):
		j := identEnd(src, i)
		if d.RawStringPrefix != "" {
			w := string(src[i:j])
			if w == d.RawStringPrefix || w == "b"+d.RawStringPrefix {
				n := countByte(src, j, '#')
				if j+n < len(src) && src[j+n] == '"' {
					return s.stringEnd(j+n, n, false)
				}
			}
		}
		return j
	}
	return i
}

// blockCommentEnd handles nested block comments in dialects that allow them.
func (s *scanner) blockCommentEnd(i int) int {
	open, end := s.d.BlockComment[0], s.d.BlockComment[1]
	if !s.d.NestedComments {
		if j := bytes.Index(s.src[i+len(open):], []byte(end)); j >= 0 {
			return i + len(open) + j + len(end)
		}
		return -1
	}
	depth := 0
	for i < len(s.src) {
		switch {
		case hasPrefixAt(s.src, i, open):
			depth++
			i += len(open)
		case hasPrefixAt(s.src, i, end):
			depth--
			i += len(end)
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return -1
}

// stringEnd scans a string whose opening quote is at q and whose closing
// quote must be followed by hashes '#' characters.
func (s *scanner) stringEnd(q, hashes int, escapes bool) int {
	delim := `"`
	if s.d.TripleQuotes && hasPrefixAt(s.src, q, `"""`) {
		delim = `"""`
	}
	closing := delim + strings.Repeat("#", hashes)
	for i := q + len(delim); i < len(s.src); i++ {
		if escapes && s.src[i] == '\\' {
			i++
			continue
		}
		if hasPrefixAt(s.src, i, closing) {
			return i + len(closing)
		}
	}
	return -1
}

// charEnd skips a character literal, or just the quote of a lifetime.
func charEnd(src []byte, i int) int {
	if i+1 < len(src) && src[i+1] == '\\' {
		for j := i + 3; j < len(src) && j < i+12; j++ {
			if src[j] == '\'' {
				return j + 1
			}
		}
		return i + 1
	}
	if i+1 < len(src) && src[i+1] != '\'' {
		_, size := utf8.DecodeRune(src[i+1:])
		if i+1+size < len(src) && src[i+1+size] == '\'' {
			return i + 2 + size
		}
	}
	return i + 1
}

// StripComments replaces every comment in text with a single space,
// leaving string contents untouched.
func StripComments(d *lang.Dialect, text string) string {
	s := &scanner{d: d, src: []byte(text)}
	var b strings.Builder
	for i := 0; i < len(text); {
		next := s.skipToken(i)
		switch {
		case next < 0:
			if !s.commentAt(i) {
				b.WriteString(text[i:])
			}
			return b.String()
		case s.commentAt(i):
			b.WriteByte(' ')
		default:
			if next == i {
				next++
			}
			b.WriteString(text[i:next])
		}
		i = next
	}
	return b.String()
}

func hasPrefixAt(src []byte, i int, prefix string) bool {
	return prefix != "" && len(src)-i >= len(prefix) && string(src[i:i+len(prefix)]) == prefix
}

func countByte(src []byte, i int, c byte) int {
	n := 0
	for i+n < len(src) && src[i+n] == c {
		n++
	}
	return n
}

func identEnd(src []byte, i int) int {
	for i < len(src) && isIdentByte(src[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
