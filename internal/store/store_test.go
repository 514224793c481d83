package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/codemap/internal/model"
)

func sampleTree() *model.Tree {
	return &model.Tree{
		Dialect: "rust",
		Doc:     "Crate doc.",
		Symbols: []*model.Symbol{
			{Kind: model.Type, Name: "User", ID: "User", Signature: "User { id: u32 }", StartLine: 1, EndLine: 3},
			{
				Kind: model.Implementation, ID: "impl User", Signature: "impl User", StartLine: 5, EndLine: 9,
				Target: &model.Target{Name: "User", Resolved: true, ID: "User", Kind: model.Type},
				Children: []*model.Symbol{
					{Kind: model.Function, Name: "new", ID: "impl User::new", Signature: "new() -> Self", StartLine: 6, EndLine: 8},
				},
			},
		},
		Warnings: []model.Warning{{Kind: model.UnknownUnit, Line: 10, Message: "x"}},
	}
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenExistingWithoutCodemap(t *testing.T) {
	t.Parallel()

	_, err := OpenExisting(t.TempDir())
	assert.True(t, errors.Is(err, ErrNoCodemap))
}

func TestOpenExistingAfterOpen(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	require.NoError(t, s.PutFile(&FileEntry{Path: "a.rs", Hash: "abc", Dialect: "rust", Tree: sampleTree()}))
	require.NoError(t, s.Close())

	s, err = OpenExisting(root)
	require.NoError(t, err)
	defer s.Close()
	e, err := s.GetFile("a.rs")
	require.NoError(t, err)
	assert.Equal(t, "abc", e.Hash)
	assert.Equal(t, root, s.Root())
}

func TestFileRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	entry := &FileEntry{
		Path:      "src/lib.rs",
		Hash:      HashContent([]byte("x")),
		IndexedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Dialect:   "rust",
		Lines:     10,
		Tree:      sampleTree(),
	}
	require.NoError(t, s.PutFile(entry))

	got, err := s.GetFile("src/lib.rs")
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	_, err = s.GetFile("missing.rs")
	assert.ErrorIs(t, err, ErrNotIndexed)

	existed, err := s.DeleteFile("src/lib.rs")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.DeleteFile("src/lib.rs")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestFilesInPathOrder(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	for _, p := range []string{"b.rs", "a/z.rs", "a.swift"} {
		require.NoError(t, s.PutFile(&FileEntry{Path: p, Tree: &model.Tree{}}))
	}

	paths, err := s.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.swift", "a/z.rs", "b.rs"}, paths)

	files, err := s.Files()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.swift", files[0].Path)

	require.NoError(t, s.Clear())
	paths, err = s.Paths()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestManifestAndStats(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	m, err := s.Manifest()
	require.NoError(t, err)
	assert.Equal(t, Version, m.Version)
	assert.True(t, m.Stats.LastFullIndex.IsZero())

	m.Languages = []string{"rust"}
	require.NoError(t, s.SetManifest(m))

	require.NoError(t, s.PutFile(&FileEntry{Path: "a.rs", Dialect: "rust", Tree: sampleTree()}))
	require.NoError(t, s.PutFile(&FileEntry{Path: "b.swift", Dialect: "swift", Tree: &model.Tree{}}))

	stats, err := s.UpdateStats(true)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 3, stats.TotalSymbols)
	assert.Equal(t, 1, stats.Warnings)
	assert.Equal(t, map[string]int{"rust": 1, "swift": 1}, stats.ByDialect)
	assert.Equal(t, map[model.Kind]int{model.Type: 1, model.Implementation: 1, model.Function: 1}, stats.ByKind)
	assert.False(t, stats.LastFullIndex.IsZero())

	stored, err := s.Manifest()
	require.NoError(t, err)
	assert.Equal(t, []string{"rust"}, stored.Languages)
	assert.Equal(t, 3, stored.Stats.TotalSymbols)
	assert.False(t, stored.GeneratedAt.IsZero())

	again, err := s.UpdateStats(false)
	require.NoError(t, err)
	assert.True(t, again.LastFullIndex.Equal(stats.LastFullIndex))
}

func TestHashContent(t *testing.T) {
	t.Parallel()

	h := HashContent([]byte("hello"))
	assert.Len(t, h, 12)
	assert.Equal(t, "2cf24dba5fb0", h)
	assert.NotEqual(t, h, HashContent([]byte("hello!")))
}

func TestCountLines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, CountLines(nil))
	assert.Equal(t, 1, CountLines([]byte("a")))
	assert.Equal(t, 1, CountLines([]byte("a\n")))
	assert.Equal(t, 2, CountLines([]byte("a\nb")))
}

func TestCompact(t *testing.T) {
	t.Parallel()

	tree := sampleTree()
	tree.Symbols[0].Doc = strings.Repeat("d", 200)
	tree.Symbols[1].Children[0].Signature = strings.Repeat("s", 120)

	out := Compact(tree, 150, 100)
	assert.Len(t, out.Symbols[0].Doc, 150)
	sig := out.Symbols[1].Children[0].Signature
	assert.Len(t, sig, 100)
	assert.True(t, strings.HasSuffix(sig, "..."))

	// The input tree is untouched.
	assert.Len(t, tree.Symbols[0].Doc, 200)
	assert.Len(t, tree.Symbols[1].Children[0].Signature, 120)
	assert.NotSame(t, tree.Symbols[1].Target, out.Symbols[1].Target)

	assert.Equal(t, tree, Compact(tree, 0, 0))
	assert.Equal(t, "héllo", truncateSignature("héllo", 5))
	assert.Equal(t, "hé...", truncateSignature("héllo!", 5))
	assert.Nil(t, Compact(nil, 1, 1))
}
