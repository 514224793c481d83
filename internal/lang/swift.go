package lang

import (
	"strings"

	"github.com/smacker/go-tree-sitter/swift"

	"github.com/phobologic/codemap/internal/model"
)

func init() {
	Dialects["swift"] = &Dialect{
		Name:              "swift",
		Extensions:        []string{".swift"},
		lang:              swift.GetLanguage(),
		LineComment:       "//",
		BlockComment:      [2]string{"/*", "*/"},
		NestedComments:    true,
		DocPrefixes:       []string{"///", "//", "/**", "/*"},
		Attributes:        AtAttributes,
		NewlineTerminated: true,
		ContinuationWords: map[string]bool{
			"where":    true,
			"throws":   true,
			"rethrows": true,
			"async":    true,
		},
		HashRawStrings:    true,
		TripleQuotes:      true,
		PathSeparator:     ".",
		Keywords: map[string]model.Kind{
			"struct":    model.Type,
			"class":     model.Type,
			"actor":     model.Type,
			"protocol":  model.Contract,
			"enum":      model.Enumeration,
			"extension": model.Implementation,
			"func":      model.Function,
			"init":      model.Function,
			"deinit":    model.Function,
			"subscript": model.Function,
		},
		Containers: map[string]bool{
			"struct":    true,
			"class":     true,
			"actor":     true,
			"protocol":  true,
			"extension": true,
		},
		Ignored: map[string]bool{
			"import":          true,
			"let":             true,
			"var":             true,
			"case":            true,
			"typealias":       true,
			"associatedtype":  true,
			"operator":        true,
			"precedencegroup": true,
		},
		SelfNamed:        map[string]bool{"init": true, "deinit": true, "subscript": true},
		ModifierKeywords: map[string]bool{"class": true},
		Modifiers: map[string]model.Modifier{
			"public":   model.Public,
			"open":     model.Public,
			"async":    model.Async,
			"mutating": model.MutSelf,
		},
		SplitImpl: swiftSplitImpl,
	}
}

// swiftSplitImpl handles "extension Type: Contract, Other where ...".
func swiftSplitImpl(rest string) (target, contract string) {
	s := strings.TrimSpace(rest)
	if i := indexWordTopLevel(s, "where"); i >= 0 {
		s = s[:i]
	}
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return strings.TrimSpace(s), ""
	}
	target = strings.TrimSpace(s[:i])
	conformances := s[i+1:]
	if j := strings.IndexByte(conformances, ','); j >= 0 {
		conformances = conformances[:j]
	}
	return target, strings.TrimSpace(conformances)
}
