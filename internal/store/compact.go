package store

import (
	"strings"
	"unicode/utf8"

	"github.com/phobologic/codemap/internal/model"
)

// Compact returns a copy of t with documentation cut to maxDoc characters
// and signatures to maxSig characters (ending in "..."). A limit of zero
// disables that cut. t itself is not modified.
func Compact(t *model.Tree, maxDoc, maxSig int) *model.Tree {
	if t == nil {
		return nil
	}
	out := &model.Tree{
		Dialect:  t.Dialect,
		Doc:      truncateDoc(t.Doc, maxDoc),
		Symbols:  compactSymbols(t.Symbols, maxDoc, maxSig),
		Warnings: append([]model.Warning(nil), t.Warnings...),
	}
	if out.Symbols == nil {
		out.Symbols = []*model.Symbol{}
	}
	return out
}

func compactSymbols(syms []*model.Symbol, maxDoc, maxSig int) []*model.Symbol {
	if syms == nil {
		return nil
	}
	out := make([]*model.Symbol, len(syms))
	for i, s := range syms {
		c := *s
		c.Modifiers = append([]model.Modifier(nil), s.Modifiers...)
		c.Attributes = append([]string(nil), s.Attributes...)
		c.Doc = truncateDoc(s.Doc, maxDoc)
		c.Signature = truncateSignature(s.Signature, maxSig)
		if s.Target != nil {
			t := *s.Target
			c.Target = &t
		}
		if s.Contract != nil {
			t := *s.Contract
			c.Contract = &t
		}
		c.Children = compactSymbols(s.Children, maxDoc, maxSig)
		out[i] = &c
	}
	return out
}

func truncateDoc(doc string, max int) string {
	doc = strings.TrimSpace(doc)
	if max <= 0 || utf8.RuneCountInString(doc) <= max {
		return doc
	}
	return prefix(doc, max)
}

func truncateSignature(sig string, max int) string {
	if max <= 0 || utf8.RuneCountInString(sig) <= max {
		return sig
	}
	if max <= 3 {
		return prefix(sig, max)
	}
	return prefix(sig, max-3) + "..."
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}
