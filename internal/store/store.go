// Package store persists per-file symbol trees in a bbolt database under
// the project's .codemap directory.
package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/phobologic/codemap/internal/model"
)

const (
	// Dir is the directory holding the index, relative to the project root.
	Dir = ".codemap"
	// DBName is the database file inside Dir.
	DBName = "index.db"
	// Version is the manifest format version.
	Version = "1"
)

var (
	bucketFiles = []byte("files")
	bucketMeta  = []byte("meta")
	keyManifest = []byte("manifest")
)

var (
	// ErrNoCodemap is returned when a project has not been indexed yet.
	ErrNoCodemap = errors.New("no codemap found (run 'codemap init' first)")
	// ErrNotIndexed is returned for a path with no stored entry.
	ErrNotIndexed = errors.New("file not indexed")
)

// FileEntry is the stored record for one source file.
type FileEntry struct {
	Path      string      `json:"path"`
	Hash      string      `json:"hash"`
	IndexedAt time.Time   `json:"indexed_at"`
	Dialect   string      `json:"dialect"`
	Lines     int         `json:"lines"`
	Tree      *model.Tree `json:"tree"`
}

// Stats summarizes the stored map.
type Stats struct {
	TotalFiles    int                `json:"total_files"`
	TotalSymbols  int                `json:"total_symbols"`
	Warnings      int                `json:"warnings"`
	ByDialect     map[string]int     `json:"by_dialect,omitempty"`
	ByKind        map[model.Kind]int `json:"by_kind,omitempty"`
	LastFullIndex time.Time          `json:"last_full_index"`
}

// Manifest describes the whole map.
type Manifest struct {
	Version     string    `json:"version"`
	Root        string    `json:"root"`
	GeneratedAt time.Time `json:"generated_at"`
	Languages   []string  `json:"languages,omitempty"`
	Stats       Stats     `json:"stats"`
}

// Store is a bbolt-backed map of files to symbol trees.
type Store struct {
	db   *bbolt.DB
	root string
}

// Path returns the database path for a project root.
func Path(root string) string {
	return filepath.Join(root, Dir, DBName)
}

// Open opens or creates the store for root.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, Dir), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", Dir, err)
	}
	return open(root)
}

// OpenExisting opens the store for root, returning ErrNoCodemap if none
// has been created.
func OpenExisting(root string) (*Store, error) {
	if _, err := os.Stat(Path(root)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCodemap
		}
		return nil, err
	}
	return open(root)
}

func open(root string) (*Store, error) {
	db, err := bbolt.Open(Path(root), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketFiles, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, root: root}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Root returns the project root the store belongs to.
func (s *Store) Root() string {
	return s.root
}

// PutFile stores or replaces the entry for e.Path.
func (s *Store) PutFile(e *FileEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFiles).Put([]byte(e.Path), data)
	})
}

// GetFile returns the entry for path, or ErrNotIndexed.
func (s *Store) GetFile(path string) (*FileEntry, error) {
	var e FileEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get([]byte(path))
		if data == nil {
			return fmt.Errorf("%s: %w", path, ErrNotIndexed)
		}
		return json.Unmarshal(data, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteFile removes the entry for path and reports whether one existed.
func (s *Store) DeleteFile(path string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		existed = b.Get([]byte(path)) != nil
		return b.Delete([]byte(path))
	})
	return existed, err
}

// ForEach calls fn for every stored entry in path order.
func (s *Store) ForEach(fn func(*FileEntry) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, v []byte) error {
			var e FileEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decoding %s: %w", k, err)
			}
			return fn(&e)
		})
	})
}

// Files returns every stored entry in path order.
func (s *Store) Files() ([]*FileEntry, error) {
	var files []*FileEntry
	err := s.ForEach(func(e *FileEntry) error {
		files = append(files, e)
		return nil
	})
	return files, err
}

// Paths returns the stored paths in order without decoding trees.
func (s *Store) Paths() ([]string, error) {
	var paths []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, _ []byte) error {
			paths = append(paths, string(bytes.Clone(k)))
			return nil
		})
	})
	return paths, err
}

// Clear removes every file entry.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketFiles); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketFiles)
		return err
	})
}

// Manifest returns the stored manifest, or an empty one.
func (s *Store) Manifest() (*Manifest, error) {
	m := &Manifest{Version: Version, Root: s.root}
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyManifest)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SetManifest stores m, stamping its generation time.
func (s *Store) SetManifest(m *Manifest) error {
	m.Version = Version
	m.GeneratedAt = time.Now().UTC()
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyManifest, data)
	})
}

// UpdateStats recomputes the manifest statistics from the stored entries.
// full marks the update as following a complete re-index.
func (s *Store) UpdateStats(full bool) (Stats, error) {
	m, err := s.Manifest()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		ByDialect:     map[string]int{},
		ByKind:        map[model.Kind]int{},
		LastFullIndex: m.Stats.LastFullIndex,
	}
	err = s.ForEach(func(e *FileEntry) error {
		stats.TotalFiles++
		stats.ByDialect[e.Dialect]++
		if e.Tree == nil {
			return nil
		}
		stats.Warnings += len(e.Tree.Warnings)
		model.Walk(e.Tree.Symbols, func(sym *model.Symbol, _ int) bool {
			stats.TotalSymbols++
			stats.ByKind[sym.Kind]++
			return true
		})
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	if full {
		stats.LastFullIndex = time.Now().UTC()
	}
	m.Stats = stats
	if err := s.SetManifest(m); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// HashContent returns the first 12 hex characters of the SHA-256 of b.
func HashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:12]
}

// CountLines returns the number of lines in src, counting a final line
// without a trailing newline.
func CountLines(src []byte) int {
	n := bytes.Count(src, []byte{'\n'})
	if len(src) > 0 && src[len(src)-1] != '\n' {
		n++
	}
	return n
}
