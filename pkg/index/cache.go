package index

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"

	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/grovetools/gitbutler/errors"
)

// Cache holds previously recorded entries keyed by path.
type Cache struct {
	entries map[string]*gitindex.Entry
}

// NewCache builds a cache from one or more indexes. Later indexes take
// precedence for paths present in several. Conflicted and intent-to-add
// entries are skipped.
func NewCache(indexes ...*gitindex.Index) *Cache {
	c := &Cache{entries: make(map[string]*gitindex.Entry)}
	for _, idx := range indexes {
		if idx == nil {
			continue
		}
		for _, e := range idx.Entries {
			if e.Stage != Normal || e.IntentToAdd || e.Hash.IsZero() {
				continue
			}
			c.entries[e.Name] = e
		}
	}
	return c
}

// Len returns the number of cached paths.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Lookup returns a copy of the cached entry for path when its metadata still
// matches m.
func (c *Cache) Lookup(path string, m Metadata) (*gitindex.Entry, bool) {
	prev, ok := c.entries[path]
	if !ok || !Unchanged(prev, m) {
		return nil, false
	}
	cp := *prev
	cp.SkipWorktree = false
	return &cp, true
}

// WithoutLarger returns a copy of idx without entries whose size exceeds
// limit. A nil idx yields nil.
func WithoutLarger(idx *gitindex.Index, limit int64) *gitindex.Index {
	if idx == nil {
		return nil
	}
	out := &gitindex.Index{Version: idx.Version}
	for _, e := range idx.Entries {
		if int64(e.Size) <= limit {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

// Build returns an index holding entries sorted by name.
func Build(entries []*gitindex.Entry) *gitindex.Index {
	sorted := append([]*gitindex.Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return &gitindex.Index{Version: 2, Entries: sorted}
}

// ReadFile decodes the index file at path. A missing file yields nil.
func ReadFile(path string) (*gitindex.Index, error) {
	f, err := os.Open(path)
	if stderrors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.FilesystemFailed("open", path, err)
	}
	defer f.Close()

	idx := &gitindex.Index{}
	if err := gitindex.NewDecoder(f).Decode(idx); err != nil {
		return nil, errors.FilesystemFailed("decode index", path, err)
	}
	return idx, nil
}

// WriteFile atomically replaces the index file at path.
func WriteFile(path string, idx *gitindex.Index) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.FilesystemFailed("mkdir", filepath.Dir(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return errors.FilesystemFailed("create", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := gitindex.NewEncoder(tmp).Encode(idx); err != nil {
		tmp.Close()
		return errors.FilesystemFailed("encode index", path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.FilesystemFailed("write", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.FilesystemFailed("rename", path, err)
	}
	return nil
}
