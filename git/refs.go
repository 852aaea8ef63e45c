package git

import (
	stderrors "errors"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/grovetools/gitbutler/errors"
)

// ResolveRef returns the commit a reference points to, or the zero hash when
// the reference does not exist.
func (r *Repository) ResolveRef(name string) (plumbing.Hash, error) {
	ref, err := r.repo.Reference(plumbing.ReferenceName(name), true)
	if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, nil
	}
	if err != nil {
		return plumbing.ZeroHash, errors.StoreFailed("resolve ref", err).WithDetail("ref", name)
	}
	return ref.Hash(), nil
}

// UpdateRef points name at hash. When old is non-zero the update only
// succeeds if the reference still points at old.
func (r *Repository) UpdateRef(name string, hash, old plumbing.Hash) error {
	refName := plumbing.ReferenceName(name)
	next := plumbing.NewHashReference(refName, hash)

	var prev *plumbing.Reference
	if !old.IsZero() {
		prev = plumbing.NewHashReference(refName, old)
	}

	if err := r.repo.Storer.CheckAndSetReference(next, prev); err != nil {
		return errors.StoreFailed("update ref", err).
			WithDetail("ref", name).
			WithDetail("hash", hash.String())
	}
	return nil
}

// Index loads the staging index. A repository without an index file yields
// an empty one.
func (r *Repository) Index() (*index.Index, error) {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return nil, errors.StoreFailed("read index", err)
	}
	return idx, nil
}
