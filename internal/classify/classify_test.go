package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
)

func decl(text string) model.SourceUnit {
	return model.SourceUnit{Kind: model.Declaration, Text: text, Line: 1}
}

func TestUnitRust(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		kind      model.Kind
		symName   string
		signature string
		modifiers []model.Modifier
	}{
		{
			name:      "struct",
			text:      "pub struct User {\n    pub id: u32,\n    pub name: String,\n}",
			kind:      model.Type,
			symName:   "User",
			signature: "User { pub id: u32, pub name: String }",
			modifiers: []model.Modifier{model.Public},
		},
		{
			name:      "tuple struct",
			text:      "struct Meters(f64);",
			kind:      model.Type,
			symName:   "Meters",
			signature: "Meters(f64)",
		},
		{
			name:      "trait head",
			text:      "pub trait UserService ",
			kind:      model.Contract,
			symName:   "UserService",
			signature: "UserService",
			modifiers: []model.Modifier{model.Public},
		},
		{
			name:      "enum",
			text:      "pub enum UserStatus {\n    Active,\n    Inactive,\n    Pending,\n}",
			kind:      model.Enumeration,
			symName:   "UserStatus",
			signature: "UserStatus { Active, Inactive, Pending }",
			modifiers: []model.Modifier{model.Public},
		},
		{
			name:      "function",
			text:      "pub fn greet(name: &str) -> String {\n    format!(\"Hello, {}!\", name)\n}",
			kind:      model.Function,
			symName:   "greet",
			signature: "greet(name: &str) -> String",
			modifiers: []model.Modifier{model.Public},
		},
		{
			name:      "async function",
			text:      "pub async fn process_data(data: Vec<u8>) -> Result<Vec<u8>, Box<dyn Error>> {\n    Ok(data)\n}",
			kind:      model.Function,
			symName:   "process_data",
			signature: "process_data(data: Vec<u8>) -> Result<Vec<u8>, Box<dyn Error>>",
			modifiers: []model.Modifier{model.Public, model.Async},
		},
		{
			name:      "method stub with mutable receiver",
			text:      "fn create_user(&mut self, name: String) -> &User;",
			kind:      model.Function,
			symName:   "create_user",
			signature: "create_user(&mut self, name: String) -> &User",
			modifiers: []model.Modifier{model.MutSelf},
		},
		{
			name:      "unrecognized modifiers kept verbatim",
			text:      "pub(crate) unsafe fn raw() {}",
			kind:      model.Function,
			symName:   "raw",
			signature: "raw()",
			modifiers: []model.Modifier{"pub(crate)", "unsafe"},
		},
		{
			name:      "extern abi",
			text:      "pub extern \"C\" fn callback(x: i32) {}",
			kind:      model.Function,
			symName:   "callback",
			signature: "callback(x: i32)",
			modifiers: []model.Modifier{model.Public, "extern \"C\""},
		},
		{
			name:      "comments inside",
			text:      "pub /* hidden */ fn f(\n    a: u8, // first\n) {}",
			kind:      model.Function,
			symName:   "f",
			signature: "f( a: u8, )",
			modifiers: []model.Modifier{model.Public},
		},
		{
			name:      "namespace head",
			text:      "pub mod utils ",
			kind:      model.Namespace,
			symName:   "utils",
			signature: "utils",
			modifiers: []model.Modifier{model.Public},
		},
		{
			name:      "namespace declared elsewhere",
			text:      "mod tests;",
			kind:      model.Namespace,
			symName:   "tests",
			signature: "tests",
		},
		{
			name:      "macro invocation",
			text:      "lazy_static!(FOO);",
			kind:      model.UnknownKind,
			signature: "lazy_static!(FOO);",
		},
	}

	rust := lang.Dialects["rust"]
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sym, ok := Unit(rust, decl(tt.text), nil)
			require.True(t, ok)
			assert.Equal(t, tt.kind, sym.Kind)
			assert.Equal(t, tt.symName, sym.Name)
			assert.Equal(t, tt.signature, sym.Signature)
			assert.Equal(t, tt.modifiers, sym.Modifiers)
			assert.Nil(t, sym.Children)
		})
	}
}

func TestUnitAsyncMarker(t *testing.T) {
	t.Parallel()

	rust := lang.Dialects["rust"]
	withMarker, ok := Unit(rust, decl("async fn load(id: u32) -> Data {}"), nil)
	require.True(t, ok)
	without, ok := Unit(rust, decl("fn load(id: u32) -> Data {}"), nil)
	require.True(t, ok)

	assert.True(t, withMarker.HasModifier(model.Async))
	assert.False(t, without.HasModifier(model.Async))
	assert.Equal(t, withMarker.Signature, without.Signature)
}

func TestUnitImplementation(t *testing.T) {
	t.Parallel()

	rust := lang.Dialects["rust"]

	sym, ok := Unit(rust, decl("impl UserService for DefaultService "), nil)
	require.True(t, ok)
	assert.Equal(t, model.Implementation, sym.Kind)
	assert.Empty(t, sym.Name)
	assert.Equal(t, "impl UserService for DefaultService", sym.Signature)
	require.NotNil(t, sym.Target)
	assert.Equal(t, &model.Target{Name: "DefaultService", Text: "DefaultService"}, sym.Target)
	assert.Equal(t, &model.Target{Name: "UserService", Text: "UserService"}, sym.Contract)

	sym, ok = Unit(rust, decl("impl<T: Clone> Repo<T> for crate::store::Store<T>\nwhere\n    T: Send\n"), nil)
	require.True(t, ok)
	assert.Equal(t, "impl<T: Clone> Repo<T> for crate::store::Store<T> where T: Send", sym.Signature)
	assert.Equal(t, "Store", sym.Target.Name)
	assert.Equal(t, "crate::store::Store<T>", sym.Target.Text)
	assert.Equal(t, "Repo", sym.Contract.Name)

	sym, ok = Unit(rust, decl("impl User "), nil)
	require.True(t, ok)
	assert.Equal(t, "User", sym.Target.Name)
	assert.Nil(t, sym.Contract)
}

func TestUnitIgnored(t *testing.T) {
	t.Parallel()

	rust := lang.Dialects["rust"]
	for _, text := range []string{
		"use std::error::Error;",
		"pub const MAX: usize = 10;",
		"static mut COUNTER: u32 = 0;",
		"type Result<T> = std::result::Result<T, Error>;",
		"extern crate alloc;",
		"extern \"C\" {\n    fn abs(x: i32) -> i32;\n}",
		"macro_rules! square {\n    ($x:expr) => { $x * $x };\n}",
		";",
		"   ",
	} {
		sym, ok := Unit(rust, decl(text), nil)
		assert.False(t, ok, text)
		assert.Nil(t, sym, text)
	}
}

func TestUnitUnknown(t *testing.T) {
	t.Parallel()

	rust := lang.Dialects["rust"]
	u := model.SourceUnit{Kind: model.Unknown, Text: "fn broken(  {\n  more\n  stuff", Line: 4}
	sym, ok := Unit(rust, u, []string{"#[test]"})
	require.True(t, ok)
	assert.Equal(t, model.UnknownKind, sym.Kind)
	assert.Equal(t, "fn broken( {", sym.Signature)
	assert.Equal(t, []string{"#[test]"}, sym.Attributes)

	_, ok = Unit(rust, model.SourceUnit{Kind: model.Comment, Text: "// x"}, nil)
	assert.False(t, ok)
}

func TestUnitSwift(t *testing.T) {
	t.Parallel()

	swift := lang.Dialects["swift"]

	sym, ok := Unit(swift, decl("func name() async throws -> String"), nil)
	require.True(t, ok)
	assert.Equal(t, "name", sym.Name)
	assert.Equal(t, "name() async throws -> String", sym.Signature)
	assert.Equal(t, []model.Modifier{model.Async}, sym.Modifiers)

	sym, ok = Unit(swift, decl("mutating func reset() {\n    count = 0\n}"), nil)
	require.True(t, ok)
	assert.Equal(t, []model.Modifier{model.MutSelf}, sym.Modifiers)

	sym, ok = Unit(swift, decl("init?(raw: String) {\n}"), nil)
	require.True(t, ok)
	assert.Equal(t, model.Function, sym.Kind)
	assert.Equal(t, "init", sym.Name)
	assert.Equal(t, "init?(raw: String)", sym.Signature)

	sym, ok = Unit(swift, decl("static func == (lhs: P, rhs: P) -> Bool { true }"), nil)
	require.True(t, ok)
	assert.Equal(t, "==", sym.Name)
	assert.Equal(t, []model.Modifier{"static"}, sym.Modifiers)

	sym, ok = Unit(swift, decl("public struct Point: Equatable "), []string{"@frozen"})
	require.True(t, ok)
	assert.Equal(t, model.Type, sym.Kind)
	assert.Equal(t, "Point", sym.Name)
	assert.Equal(t, "Point: Equatable", sym.Signature)
	assert.Equal(t, []string{"@frozen"}, sym.Attributes)

	sym, ok = Unit(swift, decl("extension Point: Equatable, Hashable "), nil)
	require.True(t, ok)
	assert.Equal(t, model.Implementation, sym.Kind)
	assert.Equal(t, "Point", sym.Target.Name)
	assert.Equal(t, "Equatable", sym.Contract.Name)

	sym, ok = Unit(swift, decl("enum Direction {\n    case north, south\n}"), nil)
	require.True(t, ok)
	assert.Equal(t, model.Enumeration, sym.Kind)
	assert.Equal(t, "Direction { case north, south }", sym.Signature)

	_, ok = Unit(swift, decl("import Foundation"), nil)
	assert.False(t, ok)
}

func TestUnitGo(t *testing.T) {
	t.Parallel()

	golang := lang.Dialects["go"]

	sym, ok := Unit(golang, decl("type User struct {\n\tID   int\n\tName string\n}"), nil)
	require.True(t, ok)
	assert.Equal(t, model.Type, sym.Kind)
	assert.Equal(t, "User", sym.Name)
	assert.Equal(t, "User struct { ID int Name string }", sym.Signature)
	assert.Equal(t, []model.Modifier{model.Public}, sym.Modifiers)

	sym, ok = Unit(golang, decl("type UserService interface {\n\tGetUser(id int) (*User, error)\n}"), nil)
	require.True(t, ok)
	assert.Equal(t, model.Contract, sym.Kind)
	assert.Equal(t, "UserService", sym.Name)
	assert.Equal(t, "UserService interface { GetUser(id int) (*User, error) }", sym.Signature)

	sym, ok = Unit(golang, decl("func (s *DefaultService) GetUser(id int) (*User, error) {\n\treturn nil, nil\n}"), nil)
	require.True(t, ok)
	assert.Equal(t, model.Function, sym.Kind)
	assert.Equal(t, "GetUser", sym.Name)
	assert.Equal(t, "GetUser(id int) (*User, error)", sym.Signature)
	assert.Equal(t, &model.Target{Name: "DefaultService", Text: "*DefaultService"}, sym.Target)
	assert.ElementsMatch(t, []model.Modifier{model.MutSelf, model.Public}, sym.Modifiers)

	sym, ok = Unit(golang, decl("func (u User) label() string { return u.Name }"), nil)
	require.True(t, ok)
	assert.Equal(t, "label", sym.Name)
	assert.Equal(t, "User", sym.Target.Name)
	assert.Empty(t, sym.Modifiers)

	sym, ok = Unit(golang, decl("func helper(p *User) {}"), nil)
	require.True(t, ok)
	assert.Equal(t, "helper(p *User)", sym.Signature)
	assert.Nil(t, sym.Target)
	assert.Empty(t, sym.Modifiers)

	for _, text := range []string{
		"package sample",
		`import "fmt"`,
		"import (\n\t\"fmt\"\n\t\"os\"\n)",
		"var debug = false",
		"const (\n\tA = 1\n\tB = 2\n)",
		"type (\n\tA int\n\tB string\n)",
	} {
		sym, ok := Unit(golang, decl(text), nil)
		assert.False(t, ok, text)
		assert.Nil(t, sym, text)
	}
}
