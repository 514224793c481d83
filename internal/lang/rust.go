package lang

import (
	"regexp"
	"strings"

	"github.com/smacker/go-tree-sitter/rust"

	"github.com/phobologic/codemap/internal/model"
)

func init() {
	Dialects["rust"] = &Dialect{
		Name:             "rust",
		Extensions:       []string{".rs"},
		lang:             rust.GetLanguage(),
		LineComment:      "//",
		BlockComment:     [2]string{"/*", "*/"},
		NestedComments:   true,
		DocPrefixes:      []string{"///", "//!", "//", "/**", "/*!", "/*"},
		InnerDocPrefixes: []string{"//!", "/*!"},
		Attributes:       BracketAttributes,
		CharLiterals:     true,
		RawStringPrefix:  "r",
		PathSeparator:    "::",
		Keywords: map[string]model.Kind{
			"struct": model.Type,
			"union":  model.Type,
			"trait":  model.Contract,
			"enum":   model.Enumeration,
			"impl":   model.Implementation,
			"fn":     model.Function,
			"mod":    model.Namespace,
		},
		Containers: map[string]bool{"mod": true, "impl": true, "trait": true},
		Ignored: map[string]bool{
			"use":          true,
			"extern":       true,
			"const":        true,
			"static":       true,
			"type":         true,
			"let":          true,
			"macro_rules!": true,
		},
		ModifierKeywords: map[string]bool{"const": true},
		Modifiers: map[string]model.Modifier{
			"pub":   model.Public,
			"async": model.Async,
		},
		SplitImpl: rustSplitImpl,
		MutSelf:   rustMutSelf,
	}
}

var rustMutSelfRe = regexp.MustCompile(`(?:^|[(,])\s*(?:&\s*(?:'\w+\s+)?)?mut\s+self\b`)

func rustMutSelf(params string) bool {
	return rustMutSelfRe.MatchString(params)
}

// rustSplitImpl handles "impl<T> Contract<T> for Type<T> where ..." and
// "impl Type".
func rustSplitImpl(rest string) (target, contract string) {
	s := strings.TrimSpace(rest)
	s = strings.TrimSuffix(s, ";")
	if strings.HasPrefix(s, "<") {
		if end := matchAngle(s, 0); end > 0 {
			s = strings.TrimSpace(s[end:])
		}
	}
	if i := indexWordTopLevel(s, "where"); i >= 0 {
		s = s[:i]
	}
	if i := indexWordTopLevel(s, "for"); i >= 0 {
		return strings.TrimSpace(s[i+len("for"):]), strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s), ""
}

// matchAngle returns the index just past the '>' closing text[open], skipping
// "->" arrows, or -1.
func matchAngle(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '<':
			depth++
		case '>':
			if i > 0 && text[i-1] == '-' {
				continue
			}
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// indexWordTopLevel finds word outside any <>, () or [] nesting.
func indexWordTopLevel(s, word string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			depth++
			continue
		case '>':
			if i > 0 && s[i-1] == '-' {
				continue
			}
			depth--
			continue
		case ')', ']':
			depth--
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
		return i
	}
	return -1
}
