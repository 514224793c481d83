// Package discover finds indexable source files in a project.
package discover

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/codemap/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path    string // slash-separated, relative to the project root
	Dialect string
}

// Options narrows discovery. Empty fields match everything.
type Options struct {
	Languages []string
	Include   []string
	Exclude   []string
}

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	".codemap":     {},
	".build":       {},
	"target":       {},
	"build":        {},
	"dist":         {},
	"Pods":         {},
	"DerivedData":  {},
	"vendor":       {},
}

// Filter decides which paths under a root are indexed. It is safe for
// concurrent use once built.
type Filter struct {
	langSet map[string]struct{}
	include []string
	exclude []string
	gi      *ignore.GitIgnore
}

// NewFilter builds a Filter for root, loading its .gitignore if present.
func NewFilter(root string, opts Options) (*Filter, error) {
	f := &Filter{
		langSet: make(map[string]struct{}, len(opts.Languages)),
		include: opts.Include,
		exclude: opts.Exclude,
		gi:      loadGitignore(root),
	}
	for _, l := range opts.Languages {
		if _, err := lang.Get(l); err != nil {
			return nil, err
		}
		f.langSet[l] = struct{}{}
	}
	for _, p := range append(append([]string(nil), opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return f, nil
}

// SkipDir reports whether the directory at rel should not be descended into.
func (f *Filter) SkipDir(rel string) bool {
	name := path.Base(rel)
	if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
		return true
	}
	return f.gi != nil && f.gi.MatchesPath(rel+"/")
}

// Match returns the dialect for the file at rel, or false if the file is
// not indexed. It does not consult git.
func (f *Filter) Match(rel string) (string, bool) {
	rel = filepath.ToSlash(rel)
	for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
		if f.SkipDir(dir) {
			return "", false
		}
	}
	if f.gi != nil && f.gi.MatchesPath(rel) {
		return "", false
	}
	return f.matchFile(rel)
}

func (f *Filter) matchFile(rel string) (string, bool) {
	name := path.Base(rel)
	if strings.HasPrefix(name, ".") {
		return "", false
	}
	dialect := lang.ForExtension(path.Ext(name))
	if dialect == "" {
		return "", false
	}
	if len(f.langSet) > 0 {
		if _, ok := f.langSet[dialect]; !ok {
			return "", false
		}
	}
	if len(f.include) > 0 && !matchAny(f.include, rel) {
		return "", false
	}
	if matchAny(f.exclude, rel) {
		return "", false
	}
	return dialect, true
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Files discovers indexable source files under root, sorted by path.
// Inside a git work tree, only files git knows about (tracked or
// untracked but not ignored) are returned.
func Files(root string, opts Options) ([]FileEntry, error) {
	f, err := NewFilter(root, opts)
	if err != nil {
		return nil, err
	}
	gitFiles := gitLsFiles(root)

	var results []FileEntry

	err = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if f.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if f.gi != nil && f.gi.MatchesPath(rel) {
			return nil
		}

		dialect, ok := f.matchFile(rel)
		if !ok {
			return nil
		}
		results = append(results, FileEntry{Path: rel, Dialect: dialect})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// IsTestFile reports whether rel looks like test code.
func IsTestFile(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(path.Dir(rel), "/") {
		switch part {
		case "tests", "test", "Tests", "benches":
			return true
		}
		if strings.HasSuffix(part, "Tests") {
			return true
		}
	}
	name := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	return strings.HasSuffix(name, "_test") || strings.HasSuffix(name, "_tests") ||
		strings.HasSuffix(name, "Tests") || strings.HasSuffix(name, "Test")
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	p := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(p)
	if err != nil {
		return nil
	}
	return gi
}
