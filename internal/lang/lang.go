// Package lang provides a dialect registry mapping file extensions to the
// keyword, comment and modifier tables the scanner and classifier use, plus
// the tree-sitter grammar used for the optional syntax cross-check.
package lang

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/codemap/internal/model"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// AttributeStyle selects how attribute markers are written.
type AttributeStyle int

const (
	// BracketAttributes are #[...] and #![...] (Rust).
	BracketAttributes AttributeStyle = iota
	// AtAttributes are @name or @name(...) (Swift).
	AtAttributes
	// NoAttributes dialects have no attribute syntax (Go).
	NoAttributes
)

// Dialect holds the syntax rules for one supported source language.
type Dialect struct {
	Name       string
	Extensions []string
	lang       *sitter.Language
	queryOnce  sync.Once
	query      *sitter.Query
	queryErr   error

	LineComment  string
	BlockComment [2]string
	// NestedComments lets block comments nest (Rust, Swift).
	NestedComments bool
	// DocPrefixes are comment markers stripped from documentation text,
	// longest first.
	DocPrefixes []string
	// InnerDocPrefixes mark comments documenting the enclosing container
	// rather than the next declaration.
	InnerDocPrefixes []string

	Attributes AttributeStyle

	// NewlineTerminated dialects end a declaration at a depth-0 newline
	// unless the next line opens with continuing punctuation or one of
	// ContinuationWords.
	NewlineTerminated bool
	ContinuationWords map[string]bool
	// CharLiterals enables 'x' literals (distinguished from Rust lifetimes).
	CharLiterals bool
	// RawStringPrefix is the letter introducing raw strings ("r" in Rust);
	// HashRawStrings enables #"..."# raw strings without a letter (Swift).
	RawStringPrefix string
	HashRawStrings  bool
	TripleQuotes    bool
	// BacktickStrings enables `...` raw strings (Go).
	BacktickStrings bool

	// PathSeparator joins qualified symbol IDs.
	PathSeparator string

	Keywords   map[string]model.Kind
	Containers map[string]bool
	Ignored    map[string]bool
	// SelfNamed keywords name the declaration after themselves (Swift init).
	SelfNamed map[string]bool
	// ModifierKeywords act as modifiers when another declaration keyword
	// follows them (Rust "const fn", Swift "class func").
	ModifierKeywords map[string]bool
	Modifiers        map[string]model.Modifier

	// ExportedByCase marks declarations whose name starts with an upper
	// case letter as public (Go).
	ExportedByCase bool
	// PackageClause is the keyword whose preceding comment documents the
	// whole file (Go "package").
	PackageClause string

	// KindFor overrides Keywords for keywords whose kind depends on the
	// text after them (Go "type X struct" vs "type X interface"). It
	// returns false when the declaration produces no symbol.
	KindFor func(keyword, rest string) (model.Kind, bool)

	// Receiver splits a method receiver off the text following a function
	// keyword. It returns the receiver type text ("" if none), whether the
	// receiver is mutable, and the remaining text.
	Receiver func(rest string) (typ string, mut bool, remainder string)

	// SplitImpl returns the target type text and the implemented contract
	// text ("" if none) from the text following an implementation keyword.
	SplitImpl func(rest string) (target, contract string)

	// MutSelf reports whether a parameter list takes a mutable receiver.
	MutSelf func(params string) bool
}

// GetLanguage returns the tree-sitter Language pointer.
func (d *Dialect) GetLanguage() *sitter.Language {
	return d.lang
}

// NewParser creates a fresh tree-sitter parser for this dialect.
// Each goroutine must use its own parser (not thread-safe).
func (d *Dialect) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(d.lang)
	return p
}

// ErrorQuery returns the compiled query matching syntax error nodes
// (safe to share across goroutines).
func (d *Dialect) ErrorQuery() (*sitter.Query, error) {
	d.queryOnce.Do(func() {
		q, err := sitter.NewQuery([]byte("(ERROR) @error"), d.lang)
		if err != nil {
			d.queryErr = fmt.Errorf("compiling query: %w", err)
			return
		}
		d.query = q
	})
	return d.query, d.queryErr
}

// Dialects maps dialect names to their configuration.
// Populated by init() functions in per-dialect files.
var Dialects = map[string]*Dialect{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, d := range Dialects {
			for _, ext := range d.Extensions {
				extensionMap[ext] = d.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the dialect name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// Get returns the named dialect.
func Get(name string) (*Dialect, error) {
	d, ok := Dialects[name]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q", name)
	}
	return d, nil
}

// Names returns the registered dialect names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Dialects))
	for name := range Dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Head is the leading part of a declaration: modifier tokens, then the
// declaration keyword, then everything after it.
type Head struct {
	Modifiers  []string
	Attributes []string
	Keyword    string
	Rest       string
	// Ignored is set when Keyword introduces a declaration that produces
	// no symbol (imports, constants, aliases).
	Ignored bool
}

// SplitHead tokenizes the start of a declaration. It returns false if no
// declaration keyword is found before the first punctuation.
func (d *Dialect) SplitHead(text string) (Head, bool) {
	var h Head
	i := 0
	for i < len(text) {
		for i < len(text) && isSpace(text[i]) {
			i++
		}
		if i >= len(text) {
			break
		}
		c := text[i]
		switch {
		case isIdentStart(c):
			j := i
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			if j < len(text) && text[j] == '!' {
				j++ // macro_rules!
			}
			word := text[i:j]
			// extern "C" is a modifier, extern crate a declaration.
			if d.isDeclWord(word) && !(word == "extern" && followedByString(text, j)) {
				next := nextWord(text, j)
				if !d.ModifierKeywords[word] || !d.isDeclWord(next) {
					h.Keyword = word
					h.Rest = text[j:]
					h.Ignored = d.Ignored[word]
					return h, true
				}
			}
			// pub(crate), pub(in path)
			if j < len(text) && text[j] == '(' {
				if end := matchParen(text, j); end > 0 {
					j = end
					word = text[i:j]
				}
			}
			h.Modifiers = append(h.Modifiers, word)
			i = j
		case c == '"' && len(h.Modifiers) > 0:
			// extern "C"
			j := i + 1
			for j < len(text) && text[j] != '"' {
				j++
			}
			if j >= len(text) {
				return h, false
			}
			last := len(h.Modifiers) - 1
			h.Modifiers[last] += " " + text[i:j+1]
			i = j + 1
		case c == '@' && d.Attributes == AtAttributes:
			j := i + 1
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			if j < len(text) && text[j] == '(' {
				if end := matchParen(text, j); end > 0 {
					j = end
				}
			}
			h.Attributes = append(h.Attributes, text[i:j])
			i = j
		default:
			// extern "C" { ... } blocks declare nothing on their own.
			if n := len(h.Modifiers); n > 0 && strings.HasPrefix(h.Modifiers[n-1], "extern ") {
				h.Keyword = "extern"
				h.Rest = text[i:]
				h.Ignored = true
				return h, true
			}
			return h, false
		}
	}
	return h, false
}

func followedByString(text string, i int) bool {
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	return i < len(text) && text[i] == '"'
}

// IsContainerHead reports whether a declaration head opens a container body.
func (d *Dialect) IsContainerHead(text string) bool {
	h, ok := d.SplitHead(text)
	return ok && !h.Ignored && d.Containers[h.Keyword]
}

func (d *Dialect) isDeclWord(w string) bool {
	if w == "" {
		return false
	}
	if _, ok := d.Keywords[w]; ok {
		return true
	}
	return d.Ignored[w]
}

func nextWord(text string, i int) string {
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	j := i
	for j < len(text) && isIdentByte(text[j]) {
		j++
	}
	if j < len(text) && text[j] == '!' {
		j++
	}
	return text[i:j]
}

// matchParen returns the index just past the parenthesis matching text[open],
// or -1 if it is unbalanced.
func matchParen(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
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

// BaseName reduces a type reference such as "&'a mut crate::models::User<T>"
// to the bare name used for by-name resolution ("User").
func BaseName(ref string) string {
	s := strings.TrimSpace(ref)
	for {
		trimmed := strings.TrimLeft(s, "&*!")
		trimmed = strings.TrimSpace(trimmed)
		if strings.HasPrefix(trimmed, "'") {
			end := strings.IndexAny(trimmed, " \t\n")
			if end < 0 {
				return ""
			}
			trimmed = strings.TrimSpace(trimmed[end:])
		}
		for _, kw := range []string{"mut ", "dyn ", "impl ", "const "} {
			trimmed = strings.TrimPrefix(trimmed, kw)
		}
		if trimmed == s {
			break
		}
		s = trimmed
	}
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "::"); i >= 0 {
		s = s[i+2:]
	}
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return ""
		}
	}
	return s
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
