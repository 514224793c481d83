// Package model defines core data structures for codemap.
package model

// UnitKind classifies a lexical span produced by the scanner.
type UnitKind int

const (
	Whitespace UnitKind = iota
	Comment
	Attribute
	Declaration
	Open
	Close
	Unknown
)

var unitKindNames = [...]string{
	Whitespace:  "whitespace",
	Comment:     "comment",
	Attribute:   "attribute",
	Declaration: "declaration",
	Open:        "open",
	Close:       "close",
	Unknown:     "unknown",
}

func (k UnitKind) String() string {
	if int(k) < len(unitKindNames) {
		return unitKindNames[k]
	}
	return "invalid"
}

// SourceUnit is a contiguous span of source text: [Start, End) in bytes.
type SourceUnit struct {
	Kind  UnitKind
	Start int
	End   int
	Line  int // 1-based line of Start
	Text  string

	// Opens is set on a Declaration whose body is a container; the next
	// non-whitespace unit is the matching Open.
	Opens bool
}

// Kind is the symbol kind of a declaration.
type Kind string

const (
	Type           Kind = "type"
	Contract       Kind = "contract"
	Enumeration    Kind = "enumeration"
	Implementation Kind = "implementation"
	Function       Kind = "function"
	Namespace      Kind = "namespace"
	UnknownKind    Kind = "unknown"
)

// Kinds lists every symbol kind in display order.
var Kinds = []Kind{Type, Contract, Enumeration, Implementation, Function, Namespace, UnknownKind}

// ParseKind returns the Kind named s, or false if s is not a kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Modifier is a declaration flag. The named constants are the recognized set;
// any other value is an opaque token preserved verbatim from source.
type Modifier string

const (
	Public  Modifier = "public"
	Async   Modifier = "async"
	MutSelf Modifier = "mut_self"
)

// Recognized reports whether m is one of the named modifiers.
func (m Modifier) Recognized() bool {
	switch m {
	case Public, Async, MutSelf:
		return true
	}
	return false
}

// Target is a by-name reference from an implementation or a receiver-bound
// method to the symbol it attaches to. ID and Kind are set only when Resolved.
type Target struct {
	Name     string `json:"name"`
	Text     string `json:"text,omitempty"`
	Resolved bool   `json:"resolved"`
	ID       string `json:"id,omitempty"`
	Kind     Kind   `json:"kind,omitempty"`
}

// Symbol is one declared entity in a symbol tree.
type Symbol struct {
	Kind       Kind       `json:"kind"`
	Name       string     `json:"name,omitempty"`
	ID         string     `json:"id"`
	Signature  string     `json:"signature,omitempty"`
	Modifiers  []Modifier `json:"modifiers,omitempty"`
	Attributes []string   `json:"attributes,omitempty"`
	Doc        string     `json:"doc,omitempty"`
	StartLine  int        `json:"start_line"`
	EndLine    int        `json:"end_line"`
	Target     *Target    `json:"target,omitempty"`
	Contract   *Target    `json:"contract,omitempty"`
	Children   []*Symbol  `json:"children,omitempty"`
}

// HasModifier reports whether s carries modifier m.
func (s *Symbol) HasModifier(m Modifier) bool {
	for _, x := range s.Modifiers {
		if x == m {
			return true
		}
	}
	return false
}

// AddModifier appends m unless it is already present.
func (s *Symbol) AddModifier(m Modifier) {
	if m == "" || s.HasModifier(m) {
		return
	}
	s.Modifiers = append(s.Modifiers, m)
}

// IsContainer reports whether symbols of this kind can hold children.
func (s *Symbol) IsContainer() bool {
	switch s.Kind {
	case Namespace, Implementation, Contract, Type:
		return true
	}
	return false
}

// Label is a short human-readable name, falling back to the signature for
// anonymous symbols such as implementations.
func (s *Symbol) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Signature
}

// WarningKind classifies a recoverable structural problem.
type WarningKind string

const (
	UnresolvedTarget      WarningKind = "unresolved_target"
	UnterminatedContainer WarningKind = "unterminated_container"
	UnmatchedClose        WarningKind = "unmatched_close"
	UnknownUnit           WarningKind = "unknown_unit"
	UnrecognizedModifier  WarningKind = "unrecognized_modifier"
	SyntaxError           WarningKind = "syntax_error"
)

// Warning is a diagnostic that accompanies a best-effort tree.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Line    int         `json:"line"`
	Symbol  string      `json:"symbol,omitempty"`
	Message string      `json:"message"`
}

// Tree is the symbol tree for one source file. Symbols are the children of
// the synthetic file root.
type Tree struct {
	Dialect  string    `json:"dialect"`
	Doc      string    `json:"doc,omitempty"`
	Symbols  []*Symbol `json:"symbols"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Walk visits every symbol depth-first in source order. Returning false from
// fn skips the symbol's children.
func Walk(symbols []*Symbol, fn func(sym *Symbol, depth int) bool) {
	walk(symbols, 0, fn)
}

func walk(symbols []*Symbol, depth int, fn func(*Symbol, int) bool) {
	for _, s := range symbols {
		if fn(s, depth) {
			walk(s.Children, depth+1, fn)
		}
	}
}

// Count returns the number of symbols in the tree, including nested ones.
func (t *Tree) Count() int {
	n := 0
	Walk(t.Symbols, func(*Symbol, int) bool {
		n++
		return true
	})
	return n
}

// Find returns the first symbol with the given ID, or nil.
func (t *Tree) Find(id string) *Symbol {
	var found *Symbol
	Walk(t.Symbols, func(s *Symbol, _ int) bool {
		if found != nil {
			return false
		}
		if s.ID == id {
			found = s
			return false
		}
		return true
	})
	return found
}
