// Package tree assembles classified declarations into a nested symbol tree.
package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
)

// frame is one open container body.
type frame struct {
	// sym is the container that receives children. Anonymous bodies share
	// their parent's container.
	sym   *model.Symbol
	named bool
	ids   map[string]int
	impls []*model.Symbol
	line  int
}

type builder struct {
	d     *lang.Dialect
	tree  *model.Tree
	stack []*frame
}

// Build nests stubs according to the Open and Close units around them.
// stubs is parallel to units. Build never drops a stub: unresolved
// implementations, stray closers and unterminated containers are reported
// as warnings on the returned tree.
func Build(d *lang.Dialect, units []model.SourceUnit, stubs []*model.Symbol) *model.Tree {
	b := &builder{
		d:    d,
		tree: &model.Tree{Dialect: d.Name},
	}
	root := &frame{sym: &model.Symbol{Kind: model.Namespace}, ids: map[string]int{}, line: 1}
	b.stack = []*frame{root}

	var pending *model.Symbol
	lastLine := 1
	for i, u := range units {
		lastLine = u.Line + strings.Count(u.Text, "\n")
		switch u.Kind {
		case model.Declaration, model.Unknown:
			sym := stubs[i]
			if sym == nil {
				continue
			}
			b.add(sym, u)
			if sym.Kind == model.UnknownKind {
				b.warn(model.UnknownUnit, u.Line, sym.ID, "unclassifiable declaration: "+sym.Signature)
			}
			if u.Opens {
				pending = sym
			}
		case model.Open:
			b.push(pending, u.Line)
			pending = nil
		case model.Close:
			b.pop(u)
		}
	}

	for len(b.stack) > 1 {
		f := b.stack[len(b.stack)-1]
		b.stack = b.stack[:len(b.stack)-1]
		id := ""
		if f.named {
			id = f.sym.ID
			f.sym.EndLine = lastLine
		}
		b.warn(model.UnterminatedContainer, f.line, id,
			fmt.Sprintf("container opened at line %d is not closed before end of input", f.line))
		b.resolve(f)
	}
	b.resolve(root)

	b.tree.Symbols = root.sym.Children
	return b.tree
}

func (b *builder) top() *frame {
	return b.stack[len(b.stack)-1]
}

// add places sym under the innermost open container and gives it a line
// span and a unique ID.
func (b *builder) add(sym *model.Symbol, u model.SourceUnit) {
	f := b.top()
	sym.StartLine = u.Line
	sym.EndLine = u.Line + strings.Count(strings.TrimRight(u.Text, " \t\r\n"), "\n")
	sym.ID = b.id(f, sym, u.Line)
	f.sym.Children = append(f.sym.Children, sym)

	for _, m := range sym.Modifiers {
		if !m.Recognized() {
			b.warn(model.UnrecognizedModifier, u.Line, sym.ID, fmt.Sprintf("unrecognized modifier %q", string(m)))
		}
	}
	if sym.Kind == model.Implementation || sym.Target != nil {
		f.impls = append(f.impls, sym)
	}
}

func (b *builder) id(f *frame, sym *model.Symbol, line int) string {
	base := sym.Name
	switch {
	case sym.Kind == model.Implementation:
		base = sym.Signature
	case sym.Kind == model.UnknownKind || base == "":
		base = "?L" + strconv.Itoa(line)
	case sym.Target != nil && sym.Target.Name != "":
		// Methods declared outside their type are qualified by receiver.
		base = sym.Target.Name + b.d.PathSeparator + base
	}
	f.ids[base]++
	if n := f.ids[base]; n > 1 {
		base += "#" + strconv.Itoa(n)
	}
	if f.sym.ID == "" {
		return base
	}
	return f.sym.ID + b.d.PathSeparator + base
}

func (b *builder) push(sym *model.Symbol, line int) {
	if sym == nil {
		parent := b.top()
		b.stack = append(b.stack, &frame{sym: parent.sym, ids: parent.ids, line: line})
		return
	}
	b.stack = append(b.stack, &frame{sym: sym, named: true, ids: map[string]int{}, line: line})
}

func (b *builder) pop(u model.SourceUnit) {
	if len(b.stack) == 1 {
		b.warn(model.UnmatchedClose, u.Line, "", "closing delimiter without an open container")
		sym := &model.Symbol{Kind: model.UnknownKind, Signature: strings.TrimSpace(u.Text)}
		b.add(sym, u)
		return
	}
	f := b.top()
	b.stack = b.stack[:len(b.stack)-1]
	if f.named {
		f.sym.EndLine = u.Line
	}
	b.resolve(f)
}

// resolve binds the implementations declared directly in f to the first
// type, enumeration or contract of the same name among f's children.
// Methods bind to their receiver's type or enumeration.
func (b *builder) resolve(f *frame) {
	for _, impl := range f.impls {
		kinds := []model.Kind{model.Type, model.Enumeration, model.Contract}
		what := "implementation target"
		if impl.Kind == model.Function {
			kinds = kinds[:2]
			what = "receiver type"
		}
		if !bindTarget(impl.Target, f.sym.Children, kinds...) {
			name := ""
			if impl.Target != nil {
				name = impl.Target.Name
			}
			b.warn(model.UnresolvedTarget, impl.StartLine, impl.ID,
				fmt.Sprintf("%s %q not found in this file", what, name))
		}
		bindTarget(impl.Contract, f.sym.Children, model.Contract)
	}
	f.impls = nil
}

func bindTarget(t *model.Target, candidates []*model.Symbol, kinds ...model.Kind) bool {
	if t == nil || t.Name == "" {
		return false
	}
	for _, c := range candidates {
		if c.Name != t.Name || !hasKind(kinds, c.Kind) {
			continue
		}
		t.Resolved = true
		t.ID = c.ID
		t.Kind = c.Kind
		return true
	}
	return false
}

func hasKind(kinds []model.Kind, k model.Kind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}

func (b *builder) warn(kind model.WarningKind, line int, symbol, msg string) {
	b.tree.Warnings = append(b.tree.Warnings, model.Warning{
		Kind:    kind,
		Line:    line,
		Symbol:  symbol,
		Message: msg,
	})
}
