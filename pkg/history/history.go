// Package history appends snapshot commits onto a dedicated reference,
// one commit per closed session, forming a strictly linear chain.
package history

import (
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/grovetools/gitbutler/git"
)

// Store is the object store capability the writer needs.
type Store interface {
	ResolveRef(name string) (plumbing.Hash, error)
	UpdateRef(name string, hash, old plumbing.Hash) error
	WriteCommit(spec git.CommitSpec) (plumbing.Hash, error)
	ReadCommit(hash plumbing.Hash) (*object.Commit, error)
}

// Writer appends commits to one history reference.
type Writer struct {
	store   Store
	ref     string
	message string
	now     func() time.Time
}

// NewWriter returns a Writer for ref whose commits carry message.
func NewWriter(store Store, ref, message string) *Writer {
	return &Writer{
		store:   store,
		ref:     ref,
		message: message,
		now:     time.Now,
	}
}

// Ref returns the reference name.
func (w *Writer) Ref() string {
	return w.ref
}

// Head returns the latest history commit id, or the zero hash when the
// reference does not exist yet.
func (w *Writer) Head() (plumbing.Hash, error) {
	return w.store.ResolveRef(w.ref)
}

// Append writes a commit of tree whose only parent is the current target of
// the reference, then moves the reference to it. The first commit has no
// parent.
func (w *Writer) Append(tree plumbing.Hash) (plumbing.Hash, error) {
	parent, err := w.store.ResolveRef(w.ref)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	var parents []plumbing.Hash
	if !parent.IsZero() {
		parents = []plumbing.Hash{parent}
	}

	hash, err := w.store.WriteCommit(git.CommitSpec{
		Tree:    tree,
		Parents: parents,
		Message: w.message,
		When:    w.now(),
	})
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if err := w.store.UpdateRef(w.ref, hash, parent); err != nil {
		return plumbing.ZeroHash, err
	}
	return hash, nil
}

// Log returns up to limit commits, newest first, following first parents
// from the reference. A limit of zero or less returns the whole chain.
func (w *Writer) Log(limit int) ([]*object.Commit, error) {
	hash, err := w.store.ResolveRef(w.ref)
	if err != nil {
		return nil, err
	}

	var out []*object.Commit
	for !hash.IsZero() {
		if limit > 0 && len(out) >= limit {
			break
		}
		commit, err := w.store.ReadCommit(hash)
		if err != nil {
			return nil, err
		}
		out = append(out, commit)

		if len(commit.ParentHashes) == 0 {
			break
		}
		hash = commit.ParentHashes[0]
	}
	return out, nil
}
