// Package snapshot turns a working directory, the open session's metadata
// directory and the HEAD reference log into one content-addressed tree.
//
// The root tree holds three subtrees:
//
//	wd/       every non-ignored file of the working directory
//	session/  every file of the session metadata directory
//	logs/HEAD the reference log of the primary HEAD
//
// Trees are written only once all three entry lists have been built, so a
// failed build leaves no tree behind. Blobs stored before the failure stay
// in the object store unreferenced.
package snapshot

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/grovetools/gitbutler/git"
	"github.com/grovetools/gitbutler/pkg/files"
	"github.com/grovetools/gitbutler/pkg/index"
	"github.com/grovetools/gitbutler/pkg/sessions"
	"github.com/sirupsen/logrus"
)

// Store is the object store surface used to write snapshots.
type Store interface {
	WriteBlobFromPath(path string) (plumbing.Hash, error)
	WriteTree(entries []git.TreeEntry) (plumbing.Hash, error)
	Index() (*gitindex.Index, error)
}

// BlobStorer stores a working directory file and returns the id recorded
// for it. Files larger than Threshold are recorded under an id other than
// their raw content's.
type BlobStorer interface {
	Store(path string, size int64) (plumbing.Hash, error)
	Threshold() int64
}

// IgnoreChecker reports ignored paths. Evaluation failures count as ignored.
type IgnoreChecker interface {
	IsIgnored(rel string, isDir bool) bool
}

// Lister lists the regular files below a root as slash-separated relative
// paths.
type Lister interface {
	List(root string) ([]string, error)
}

// Layout locates the inputs of a snapshot.
type Layout struct {
	Workdir    string
	SessionDir string
	Reflog     string
	// RecordedIndex is where the working directory index of the last
	// snapshot is kept. Empty disables it.
	RecordedIndex string
}

// Result describes a built snapshot.
type Result struct {
	Tree    plumbing.Hash
	Workdir plumbing.Hash
	Session plumbing.Hash
	Logs    plumbing.Hash

	// Reused counts working directory files taken from a previous index
	// without being read.
	Reused int
	// Stored counts working directory files whose content was stored.
	Stored int

	index *gitindex.Index
}

// Builder builds snapshot trees.
type Builder struct {
	store  Store
	blobs  BlobStorer
	layout Layout
	log    *logrus.Entry
	lister func(IgnoreChecker) Lister
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(b *Builder) {
		b.log = log
	}
}

// WithLister replaces the working directory lister.
func WithLister(fn func(IgnoreChecker) Lister) Option {
	return func(b *Builder) {
		b.lister = fn
	}
}

// NewBuilder returns a Builder.
func NewBuilder(store Store, blobs BlobStorer, layout Layout, opts ...Option) *Builder {
	b := &Builder{
		store:  store,
		blobs:  blobs,
		layout: layout,
		log:    logrus.NewEntry(logrus.StandardLogger()),
		lister: func(ignore IgnoreChecker) Lister {
			return files.NewLister(files.WithSkipDir(func(rel string) bool {
				return ignore.IsIgnored(rel, true)
			}))
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build writes the three subtrees and the root tree joining them.
func (b *Builder) Build(ctx context.Context, ignore IgnoreChecker) (*Result, error) {
	res := &Result{}

	wdEntries, err := b.workdirEntries(ctx, ignore, res)
	if err != nil {
		return nil, err
	}
	sessionEntries, err := b.sessionEntries(ctx)
	if err != nil {
		return nil, err
	}
	logEntries, err := b.logEntries()
	if err != nil {
		return nil, err
	}

	if res.Workdir, err = b.writeIndexTree(wdEntries); err != nil {
		return nil, err
	}
	if res.Session, err = b.writeIndexTree(sessionEntries); err != nil {
		return nil, err
	}
	if res.Logs, err = b.writeIndexTree(logEntries); err != nil {
		return nil, err
	}
	res.index = index.Build(wdEntries)

	res.Tree, err = b.store.WriteTree([]git.TreeEntry{
		{Path: sessions.TreeWorkdir, Mode: filemode.Dir, Hash: res.Workdir},
		{Path: sessions.TreeSession, Mode: filemode.Dir, Hash: res.Session},
		{Path: sessions.TreeLogs, Mode: filemode.Dir, Hash: res.Logs},
	})
	if err != nil {
		return nil, err
	}

	b.log.WithFields(logrus.Fields{
		"tree":   res.Tree.String(),
		"reused": res.Reused,
		"stored": res.Stored,
	}).Debug("Built snapshot tree")
	return res, nil
}

// SaveIndex records the working directory index of res so the next build
// can reuse its entries.
func (b *Builder) SaveIndex(res *Result) error {
	if b.layout.RecordedIndex == "" || res == nil || res.index == nil {
		return nil
	}
	return index.WriteFile(b.layout.RecordedIndex, res.index)
}

func (b *Builder) previousEntries() (*index.Cache, error) {
	live, err := b.store.Index()
	if err != nil {
		return nil, err
	}

	var recorded *gitindex.Index
	if b.layout.RecordedIndex != "" {
		recorded, err = index.ReadFile(b.layout.RecordedIndex)
		if err != nil {
			// A damaged record only costs rehashing
			b.log.WithError(err).Warn("Ignoring unreadable recorded index")
			recorded = nil
		}
	}
	// Git's own index holds raw content ids, which are wrong for files the
	// blob storer externalizes.
	return index.NewCache(index.WithoutLarger(live, b.blobs.Threshold()), recorded), nil
}

func (b *Builder) workdirEntries(ctx context.Context, ignore IgnoreChecker, res *Result) ([]*gitindex.Entry, error) {
	cache, err := b.previousEntries()
	if err != nil {
		return nil, err
	}

	paths, err := b.lister(ignore).List(b.layout.Workdir)
	if err != nil {
		return nil, err
	}

	entries := make([]*gitindex.Entry, 0, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ignore.IsIgnored(rel, false) {
			continue
		}

		abs := filepath.Join(b.layout.Workdir, filepath.FromSlash(rel))
		meta, err := index.Stat(abs)
		if err != nil {
			return nil, err
		}

		if prev, ok := cache.Lookup(rel, meta); ok {
			entries = append(entries, prev)
			res.Reused++
			continue
		}

		hash, err := b.blobs.Store(abs, meta.Size)
		if err != nil {
			return nil, err
		}
		entries = append(entries, meta.Entry(rel, hash))
		res.Stored++
	}
	return entries, nil
}

func (b *Builder) sessionEntries(ctx context.Context) ([]*gitindex.Entry, error) {
	paths, err := files.List(b.layout.SessionDir)
	if err != nil {
		return nil, err
	}

	entries := make([]*gitindex.Entry, 0, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		abs := filepath.Join(b.layout.SessionDir, filepath.FromSlash(rel))
		meta, err := index.Stat(abs)
		if err != nil {
			return nil, err
		}
		hash, err := b.store.WriteBlobFromPath(abs)
		if err != nil {
			return nil, err
		}
		entries = append(entries, meta.Entry(rel, hash))
	}
	return entries, nil
}

// logEntries maps the reference log to the single entry "HEAD". A
// repository that has never moved HEAD has no log and gets an empty tree.
func (b *Builder) logEntries() ([]*gitindex.Entry, error) {
	meta, err := index.Stat(b.layout.Reflog)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	hash, err := b.store.WriteBlobFromPath(b.layout.Reflog)
	if err != nil {
		return nil, err
	}
	return []*gitindex.Entry{meta.Entry(sessions.LogName, hash)}, nil
}

func (b *Builder) writeIndexTree(entries []*gitindex.Entry) (plumbing.Hash, error) {
	treeEntries := make([]git.TreeEntry, 0, len(entries))
	for _, e := range entries {
		treeEntries = append(treeEntries, git.TreeEntry{Path: e.Name, Mode: e.Mode, Hash: e.Hash})
	}
	return b.store.WriteTree(treeEntries)
}
