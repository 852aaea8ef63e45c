package git

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/grovetools/gitbutler/errors"
)

// TreeEntry places an object at a slash-separated path. Entries with mode
// filemode.Dir reference an already written tree.
type TreeEntry struct {
	Path string
	Mode filemode.FileMode
	Hash plumbing.Hash
}

// CommitSpec describes a commit to write.
type CommitSpec struct {
	Tree    plumbing.Hash
	Parents []plumbing.Hash
	Message string
	When    time.Time
}

// WriteBlob stores data as a blob.
func (r *Repository) WriteBlob(data []byte) (plumbing.Hash, error) {
	return r.writeBlob(bytes.NewReader(data), int64(len(data)))
}

// WriteBlobFromPath stores the content of the file at path as a blob.
func (r *Repository) WriteBlobFromPath(path string) (plumbing.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return plumbing.ZeroHash, errors.FilesystemFailed("open", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return plumbing.ZeroHash, errors.FilesystemFailed("stat", path, err)
	}
	return r.writeBlob(f, info.Size())
}

func (r *Repository) writeBlob(src io.Reader, size int64) (plumbing.Hash, error) {
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(size)

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, errors.StoreFailed("write blob", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return plumbing.ZeroHash, errors.StoreFailed("write blob", err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, errors.StoreFailed("write blob", err)
	}

	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, errors.StoreFailed("write blob", err)
	}
	return hash, nil
}

type treeNode struct {
	entries map[string]object.TreeEntry
	dirs    map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{
		entries: make(map[string]object.TreeEntry),
		dirs:    make(map[string]*treeNode),
	}
}

// WriteTree writes a tree containing entries, creating intermediate trees
// for nested paths, and returns the root tree id. Equal input produces an
// equal id.
func (r *Repository) WriteTree(entries []TreeEntry) (plumbing.Hash, error) {
	root := newTreeNode()

	for _, e := range entries {
		parts := strings.Split(strings.Trim(e.Path, "/"), "/")
		if e.Path == "" || parts[0] == "" {
			return plumbing.ZeroHash, errors.New(errors.ErrCodeInvalidInput, "tree entry with empty path")
		}

		node := root
		for _, dir := range parts[:len(parts)-1] {
			if _, clash := node.entries[dir]; clash {
				return plumbing.ZeroHash, errors.New(errors.ErrCodeInvalidInput,
					fmt.Sprintf("tree path %s crosses a file", e.Path))
			}
			child, ok := node.dirs[dir]
			if !ok {
				child = newTreeNode()
				node.dirs[dir] = child
			}
			node = child
		}

		name := parts[len(parts)-1]
		if _, clash := node.dirs[name]; clash {
			return plumbing.ZeroHash, errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("tree path %s is also a directory", e.Path))
		}
		node.entries[name] = object.TreeEntry{Name: name, Mode: e.Mode, Hash: e.Hash}
	}

	return r.writeTreeNode(root)
}

func (r *Repository) writeTreeNode(node *treeNode) (plumbing.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(node.entries)+len(node.dirs))
	for _, e := range node.entries {
		entries = append(entries, e)
	}
	for name, child := range node.dirs {
		hash, err := r.writeTreeNode(child)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: hash})
	}
	sortTreeEntries(entries)

	tree := &object.Tree{Entries: entries}
	obj := r.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, errors.StoreFailed("encode tree", err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, errors.StoreFailed("write tree", err)
	}
	return hash, nil
}

// sortTreeEntries orders entries the way git does: directories compare as
// if their name ended in a slash.
func sortTreeEntries(entries []object.TreeEntry) {
	key := func(e object.TreeEntry) string {
		if e.Mode == filemode.Dir {
			return e.Name + "/"
		}
		return e.Name
	}
	sort.Slice(entries, func(i, j int) bool {
		return key(entries[i]) < key(entries[j])
	})
}

// WriteCommit writes a commit authored and committed by the repository
// signature.
func (r *Repository) WriteCommit(spec CommitSpec) (plumbing.Hash, error) {
	when := spec.When
	if when.IsZero() {
		when = time.Now()
	}
	name, email := r.Signature()
	sig := object.Signature{Name: name, Email: email, When: when}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      spec.Message,
		TreeHash:     spec.Tree,
		ParentHashes: spec.Parents,
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, errors.StoreFailed("encode commit", err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, errors.StoreFailed("write commit", err)
	}
	return hash, nil
}

// ReadCommit loads a commit.
func (r *Repository) ReadCommit(hash plumbing.Hash) (*object.Commit, error) {
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, errors.StoreFailed("read commit", err).WithDetail("hash", hash.String())
	}
	return commit, nil
}

// ReadTree loads a tree.
func (r *Repository) ReadTree(hash plumbing.Hash) (*object.Tree, error) {
	tree, err := r.repo.TreeObject(hash)
	if err != nil {
		return nil, errors.StoreFailed("read tree", err).WithDetail("hash", hash.String())
	}
	return tree, nil
}

// ReadBlob returns the full content of a blob.
func (r *Repository) ReadBlob(hash plumbing.Hash) ([]byte, error) {
	blob, err := r.repo.BlobObject(hash)
	if err != nil {
		return nil, errors.StoreFailed("read blob", err).WithDetail("hash", hash.String())
	}
	rd, err := blob.Reader()
	if err != nil {
		return nil, errors.StoreFailed("read blob", err).WithDetail("hash", hash.String())
	}
	defer rd.Close()

	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, errors.StoreFailed("read blob", err).WithDetail("hash", hash.String())
	}
	return data, nil
}

// ReadFile returns the content of the file at a slash path inside a tree.
func (r *Repository) ReadFile(treeHash plumbing.Hash, path string) ([]byte, error) {
	tree, err := r.ReadTree(treeHash)
	if err != nil {
		return nil, err
	}
	f, err := tree.File(path)
	if err != nil {
		return nil, errors.StoreFailed("read tree file", err).WithDetail("path", path)
	}
	content, err := f.Contents()
	if err != nil {
		return nil, errors.StoreFailed("read tree file", err).WithDetail("path", path)
	}
	return []byte(content), nil
}
