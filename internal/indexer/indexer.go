// Package indexer drives the parse pipeline over a project and keeps the
// store in step with the files on disk.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/codemap/internal/config"
	"github.com/phobologic/codemap/internal/discover"
	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/parse"
	"github.com/phobologic/codemap/internal/store"
)

// ErrUnsupported is returned for a file no configured dialect handles.
var ErrUnsupported = errors.New("unsupported or excluded file")

// Indexer indexes the files under one project root into a store.
type Indexer struct {
	root   string
	st     *store.Store
	cfg    *config.Config
	filter *discover.Filter

	stderr   io.Writer
	stderrMu sync.Mutex
}

// New returns an Indexer for st's root. Warnings are written to stderr;
// pass io.Discard to silence them.
func New(st *store.Store, cfg *config.Config, stderr io.Writer) (*Indexer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if stderr == nil {
		stderr = io.Discard
	}
	f, err := discover.NewFilter(st.Root(), cfg.DiscoverOptions())
	if err != nil {
		return nil, err
	}
	return &Indexer{root: st.Root(), st: st, cfg: cfg, filter: f, stderr: stderr}, nil
}

// Summary reports the outcome of a multi-file run.
type Summary struct {
	Files    int
	Symbols  int
	Warnings int
	Skipped  int
	Failed   int
	Removed  int
}

// Progress is called after each file is processed.
type Progress func(done, total int)

// IndexAll discovers every file under the root and replaces the store's
// contents with fresh entries.
func (ix *Indexer) IndexAll(ctx context.Context, progress Progress) (Summary, error) {
	files, err := discover.Files(ix.root, ix.cfg.DiscoverOptions())
	if err != nil {
		return Summary{}, fmt.Errorf("discovering files: %w", err)
	}

	var sum Summary
	files, sum.Skipped = ix.filterBySize(files)

	entries, err := ix.indexConcurrent(ctx, files, progress)
	if err != nil {
		return Summary{}, err
	}

	if err := ix.st.Clear(); err != nil {
		return Summary{}, fmt.Errorf("clearing store: %w", err)
	}
	for _, e := range entries {
		if e == nil {
			sum.Failed++
			continue
		}
		if err := ix.st.PutFile(e); err != nil {
			return Summary{}, fmt.Errorf("storing %s: %w", e.Path, err)
		}
		sum.Files++
		sum.Symbols += e.Tree.Count()
		sum.Warnings += len(e.Tree.Warnings)
	}

	m, err := ix.st.Manifest()
	if err != nil {
		return Summary{}, err
	}
	m.Root = ix.root
	m.Languages = ix.cfg.Languages
	if err := ix.st.SetManifest(m); err != nil {
		return Summary{}, err
	}
	if _, err := ix.st.UpdateStats(true); err != nil {
		return Summary{}, fmt.Errorf("updating stats: %w", err)
	}
	return sum, nil
}

// Change describes what UpdateFile did.
type Change int

const (
	Unchanged Change = iota
	Updated
	Added
	Removed
)

func (c Change) String() string {
	switch c {
	case Updated:
		return "updated"
	case Added:
		return "added"
	case Removed:
		return "removed"
	}
	return "unchanged"
}

// UpdateFile re-indexes one file given relative to the root. A file that
// no longer exists is removed from the store. Stats are refreshed when
// anything changed.
func (ix *Indexer) UpdateFile(rel string) (Change, error) {
	rel = filepath.ToSlash(filepath.Clean(rel))
	change, err := ix.updateFile(rel)
	if err != nil || change == Unchanged {
		return change, err
	}
	if _, err := ix.st.UpdateStats(false); err != nil {
		return change, fmt.Errorf("updating stats: %w", err)
	}
	return change, nil
}

func (ix *Indexer) updateFile(rel string) (Change, error) {
	old, err := ix.st.GetFile(rel)
	if err != nil && !errors.Is(err, store.ErrNotIndexed) {
		return Unchanged, err
	}

	source, err := os.ReadFile(filepath.Join(ix.root, filepath.FromSlash(rel)))
	if errors.Is(err, os.ErrNotExist) {
		existed, err := ix.st.DeleteFile(rel)
		if err != nil || !existed {
			return Unchanged, err
		}
		return Removed, nil
	}
	if err != nil {
		return Unchanged, fmt.Errorf("reading %s: %w", rel, err)
	}

	dialect, ok := ix.filter.Match(rel)
	if !ok {
		return Unchanged, fmt.Errorf("%s: %w", rel, ErrUnsupported)
	}
	if old != nil && old.Hash == store.HashContent(source) {
		return Unchanged, nil
	}
	if ix.cfg.MaxFileSize > 0 && int64(len(source)) > ix.cfg.MaxFileSize {
		ix.warnf("Warning: %s: skipped (>%d bytes)\n", rel, ix.cfg.MaxFileSize)
		return Unchanged, nil
	}

	e, err := ix.buildEntry(rel, dialect, source, nil)
	if err != nil {
		return Unchanged, err
	}
	if err := ix.st.PutFile(e); err != nil {
		return Unchanged, fmt.Errorf("storing %s: %w", rel, err)
	}
	if old == nil {
		return Added, nil
	}
	return Updated, nil
}

// StaleReason says why an entry no longer matches the disk.
type StaleReason string

const (
	Modified  StaleReason = "modified"
	Deleted   StaleReason = "deleted"
	Untracked StaleReason = "new"
)

// StaleFile is a path whose stored entry is out of date.
type StaleFile struct {
	Path   string
	Reason StaleReason
}

// Stale compares stored hashes with the files on disk and also reports
// discoverable files that have no entry yet. Results are sorted by path.
func (ix *Indexer) Stale() ([]StaleFile, error) {
	var stale []StaleFile
	known := map[string]bool{}
	paths, err := ix.st.Paths()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		known[p] = true
		fresh, err := ix.ValidateFile(p)
		switch {
		case errors.Is(err, os.ErrNotExist):
			stale = append(stale, StaleFile{Path: p, Reason: Deleted})
		case err != nil:
			return nil, err
		case !fresh:
			stale = append(stale, StaleFile{Path: p, Reason: Modified})
		}
	}

	files, err := discover.Files(ix.root, ix.cfg.DiscoverOptions())
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	files, _ = ix.filterBySize(files)
	for _, f := range files {
		if !known[f.Path] {
			stale = append(stale, StaleFile{Path: f.Path, Reason: Untracked})
		}
	}

	sort.Slice(stale, func(i, j int) bool { return stale[i].Path < stale[j].Path })
	return stale, nil
}

// ValidateFile reports whether the stored hash for rel matches the file on
// disk. A missing file returns an error satisfying errors.Is(err,
// os.ErrNotExist); a file without an entry returns store.ErrNotIndexed.
func (ix *Indexer) ValidateFile(rel string) (bool, error) {
	rel = filepath.ToSlash(filepath.Clean(rel))
	e, err := ix.st.GetFile(rel)
	if err != nil {
		return false, err
	}
	source, err := os.ReadFile(filepath.Join(ix.root, filepath.FromSlash(rel)))
	if err != nil {
		return false, err
	}
	return e.Hash == store.HashContent(source), nil
}

// UpdateStale brings every stale entry up to date.
func (ix *Indexer) UpdateStale(ctx context.Context) (Summary, error) {
	stale, err := ix.Stale()
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, s := range stale {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		change, err := ix.updateFile(s.Path)
		if err != nil {
			ix.warnf("Warning: %s: %v\n", s.Path, err)
			sum.Failed++
			continue
		}
		switch change {
		case Removed:
			sum.Removed++
		case Added, Updated:
			sum.Files++
		}
	}
	if len(stale) > 0 {
		if _, err := ix.st.UpdateStats(false); err != nil {
			return sum, fmt.Errorf("updating stats: %w", err)
		}
	}
	return sum, nil
}

// indexConcurrent parses files on a bounded pool. The returned slice is
// parallel to files; failed files leave a nil entry.
func (ix *Indexer) indexConcurrent(ctx context.Context, files []discover.FileEntry, progress Progress) ([]*store.FileEntry, error) {
	entries := make([]*store.FileEntry, len(files))
	if len(files) == 0 {
		return entries, nil
	}

	workers := ix.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	// Parsers are not thread-safe; keep a pool so each goroutine holds its own.
	pools := map[string]*sync.Pool{}
	if ix.cfg.SyntaxCheck {
		for _, name := range lang.Names() {
			d := lang.Dialects[name]
			pools[name] = &sync.Pool{New: func() any { return d.NewParser() }}
		}
	}

	var (
		mu   sync.Mutex
		done int
	)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			var parser *sitter.Parser
			if pool := pools[f.Dialect]; pool != nil {
				parser = pool.Get().(*sitter.Parser)
				defer pool.Put(parser)
			}

			e, err := ix.indexFile(f, parser)
			if err != nil {
				ix.warnf("Warning: failed to index %s: %v\n", f.Path, err)
			} else {
				entries[i] = e
			}

			if progress != nil {
				mu.Lock()
				done++
				progress(done, len(files))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (ix *Indexer) indexFile(f discover.FileEntry, parser *sitter.Parser) (*store.FileEntry, error) {
	source, err := os.ReadFile(filepath.Join(ix.root, filepath.FromSlash(f.Path)))
	if err != nil {
		return nil, err
	}
	return ix.buildEntry(f.Path, f.Dialect, source, parser)
}

func (ix *Indexer) buildEntry(rel, dialect string, source []byte, parser *sitter.Parser) (*store.FileEntry, error) {
	d, err := lang.Get(dialect)
	if err != nil {
		return nil, err
	}
	t, err := parse.Source(d, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rel, err)
	}
	if ix.cfg.SyntaxCheck {
		if parser == nil {
			parser = d.NewParser()
		}
		t.Warnings = append(t.Warnings, parse.SyntaxCheck(d, parser, source)...)
	}
	return &store.FileEntry{
		Path:      rel,
		Hash:      store.HashContent(source),
		IndexedAt: time.Now().UTC(),
		Dialect:   dialect,
		Lines:     store.CountLines(source),
		Tree:      store.Compact(t, ix.cfg.MaxDocLength, ix.cfg.MaxSignatureLength),
	}, nil
}

func (ix *Indexer) filterBySize(files []discover.FileEntry) ([]discover.FileEntry, int) {
	if ix.cfg.MaxFileSize <= 0 {
		return files, 0
	}
	var kept []discover.FileEntry
	skipped := 0
	for _, f := range files {
		fi, err := os.Stat(filepath.Join(ix.root, filepath.FromSlash(f.Path)))
		if err != nil {
			kept = append(kept, f) // keep if can't stat
			continue
		}
		if fi.Size() > ix.cfg.MaxFileSize {
			ix.warnf("Warning: %s: skipped (>%d bytes)\n", f.Path, ix.cfg.MaxFileSize)
			skipped++
			continue
		}
		kept = append(kept, f)
	}
	return kept, skipped
}

func (ix *Indexer) warnf(format string, args ...any) {
	ix.stderrMu.Lock()
	defer ix.stderrMu.Unlock()
	_, _ = fmt.Fprintf(ix.stderr, format, args...)
}
