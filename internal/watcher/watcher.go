// Package watcher reports debounced batches of changed source files under a
// project root.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/phobologic/codemap/internal/discover"
)

// Watcher watches a directory tree recursively.
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string
	filter   *discover.Filter
	debounce time.Duration
}

// New creates a watcher for root. Only files the filter matches are
// reported; directories the filter skips are not watched.
func New(root string, filter *discover.Filter, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{watcher: fw, root: root, filter: filter, debounce: debounce}
	if err := w.addRecursive(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run delivers changed paths, relative to the root and sorted, to onChange
// once no further events arrive for the debounce period. It blocks until
// ctx is done, then flushes any pending batch and returns ctx.Err().
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	pending := map[string]bool{}
	fire := make(chan struct{}, 1)
	var timer *time.Timer

	flush := func() {
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		pending = map[string]bool{}
		onChange(paths)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			flush()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				flush()
				return nil
			}

			// New directories need their own watch.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if rel, ok := w.rel(event.Name); ok && !w.filter.SkipDir(rel) {
						if err := w.addRecursive(event.Name); err != nil {
							log.Printf("Warning: failed to watch new directory %s: %v", event.Name, err)
						}
					}
					continue
				}
			}

			rel, ok := w.shouldProcess(event)
			if !ok {
				continue
			}
			pending[rel] = true

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			flush()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				flush()
				return nil
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}

func (w *Watcher) shouldProcess(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}
	rel, ok := w.rel(event.Name)
	if !ok {
		return "", false
	}
	_, ok = w.filter.Match(rel)
	return rel, ok
}

func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			log.Printf("Warning: error accessing %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(path); ok && w.filter.SkipDir(rel) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to watch directory %s: %v", path, err)
		}
		return nil
	})
}
