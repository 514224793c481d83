package lang

import (
	"strings"

	"github.com/smacker/go-tree-sitter/golang"

	"github.com/phobologic/codemap/internal/model"
)

func init() {
	Dialects["go"] = &Dialect{
		Name:              "go",
		Extensions:        []string{".go"},
		lang:              golang.GetLanguage(),
		LineComment:       "//",
		BlockComment:      [2]string{"/*", "*/"},
		DocPrefixes:       []string{"//", "/*"},
		Attributes:        NoAttributes,
		NewlineTerminated: true,
		CharLiterals:      true,
		BacktickStrings:   true,
		PathSeparator:     ".",
		Keywords: map[string]model.Kind{
			"type": model.Type,
			"func": model.Function,
		},
		Ignored: map[string]bool{
			"package": true,
			"import":  true,
			"var":     true,
			"const":   true,
		},
		ExportedByCase: true,
		PackageClause:  "package",
		KindFor:        goKindFor,
		Receiver:       goReceiver,
	}
}

// goKindFor tells "type X interface" contracts from other type
// definitions. Grouped "type ( ... )" blocks produce no symbol.
func goKindFor(keyword, rest string) (model.Kind, bool) {
	if keyword != "type" {
		return model.Function, true
	}
	s := strings.TrimSpace(rest)
	i := 0
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	if i == 0 {
		return "", false
	}
	s = strings.TrimSpace(s[i:])
	// type parameters: List[T any]
	if strings.HasPrefix(s, "[") {
		depth := 0
		for j := 0; j < len(s); j++ {
			switch s[j] {
			case '[':
				depth++
			case ']':
				depth--
			}
			if depth == 0 {
				s = strings.TrimSpace(s[j+1:])
				break
			}
		}
	}
	if nextWord(s, 0) == "interface" {
		return model.Contract, true
	}
	return model.Type, true
}

// goReceiver splits "(s *Service) Name(...)" into the receiver type
// "*Service" and "Name(...)". Pointer receivers are mutable.
func goReceiver(rest string) (typ string, mut bool, remainder string) {
	s := strings.TrimSpace(rest)
	if !strings.HasPrefix(s, "(") {
		return "", false, rest
	}
	end := matchParen(s, 0)
	if end < 0 {
		return "", false, rest
	}
	inner := s[1 : end-1]
	if i := strings.IndexByte(inner, '['); i >= 0 {
		inner = inner[:i]
	}
	fields := strings.Fields(inner)
	switch len(fields) {
	case 0:
		return "", false, rest
	case 1:
		typ = fields[0]
	default:
		typ = strings.Join(fields[1:], "")
	}
	return typ, strings.HasPrefix(typ, "*"), strings.TrimSpace(s[end:])
}
