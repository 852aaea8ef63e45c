// Package files lists the regular files below a directory.
package files

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/grovetools/gitbutler/errors"
)

// SkipDirFunc reports whether the directory at the slash-separated relative
// path should not be descended into.
type SkipDirFunc func(rel string) bool

// Lister enumerates files below a root.
type Lister struct {
	skipDir SkipDirFunc
}

// Option configures a Lister.
type Option func(*Lister)

// WithSkipDir prunes directories for which fn returns true.
func WithSkipDir(fn SkipDirFunc) Option {
	return func(l *Lister) {
		l.skipDir = fn
	}
}

// NewLister returns a Lister. Directories named .git are never entered.
func NewLister(opts ...Option) *Lister {
	l := &Lister{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// List returns the slash-separated paths, relative to root, of every regular
// file below root in lexical order. A missing root yields no files.
func (l *Lister) List(root string) ([]string, error) {
	var out []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return errors.FilesystemFailed("list", path, err)
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.FilesystemFailed("list", path, err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == ".git" || (l.skipDir != nil && l.skipDir(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(out)
	return out, nil
}

// List lists root with a default Lister.
func List(root string) ([]string, error) {
	return NewLister().List(root)
}
