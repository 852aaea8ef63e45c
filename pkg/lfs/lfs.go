// Package lfs diverts files above a size threshold into a side store keyed
// by their SHA-256 digest and records a pointer in their place.
package lfs

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/grovetools/gitbutler/errors"
)

// DefaultThreshold is the largest size stored inline.
const DefaultThreshold int64 = 100_000_000

const bufferSize = 32 * 1024

// BlobWriter stores blobs in the object store.
type BlobWriter interface {
	WriteBlob(data []byte) (plumbing.Hash, error)
	WriteBlobFromPath(path string) (plumbing.Hash, error)
}

// Externalizer decides per file between inline and external storage.
type Externalizer struct {
	blobs     BlobWriter
	fs        billy.Filesystem
	threshold int64
	upper     bool
}

// Option configures an Externalizer.
type Option func(*Externalizer)

// WithThreshold sets the largest size stored inline.
func WithThreshold(n int64) Option {
	return func(x *Externalizer) {
		x.threshold = n
	}
}

// WithUppercaseDigest formats digests in upper case hex, matching stores
// written by earlier releases.
func WithUppercaseDigest(upper bool) Option {
	return func(x *Externalizer) {
		x.upper = upper
	}
}

// WithFilesystem replaces the side store filesystem.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(x *Externalizer) {
		x.fs = fs
	}
}

// New returns an Externalizer writing external copies below objectsDir.
func New(blobs BlobWriter, objectsDir string, opts ...Option) *Externalizer {
	x := &Externalizer{
		blobs:     blobs,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.fs == nil {
		x.fs = osfs.New(objectsDir)
	}
	return x
}

// Threshold returns the largest size stored inline.
func (x *Externalizer) Threshold() int64 {
	return x.threshold
}

// Store returns the blob id recorded for the file at path. Files of at
// most the threshold are stored as they are. Larger files are copied to
// the side store and their pointer text is stored instead.
func (x *Externalizer) Store(path string, size int64) (plumbing.Hash, error) {
	if size <= x.threshold {
		return x.blobs.WriteBlobFromPath(path)
	}

	oid, err := x.Digest(path)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := x.copyIn(path, oid); err != nil {
		return plumbing.ZeroHash, err
	}

	pointer := Pointer{OID: oid, Size: size}
	return x.blobs.WriteBlob([]byte(pointer.String()))
}

// Digest streams the file at path through SHA-256.
func (x *Externalizer) Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.FilesystemFailed("open", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", errors.FilesystemFailed("read", path, err)
	}

	digest := hex.EncodeToString(h.Sum(nil))
	if x.upper {
		digest = strings.ToUpper(digest)
	}
	return digest, nil
}

// Open opens the external copy stored under oid.
func (x *Externalizer) Open(oid string) (billy.File, error) {
	f, err := x.fs.Open(oid)
	if err != nil {
		return nil, errors.FilesystemFailed("open", x.fs.Join(x.fs.Root(), oid), err)
	}
	return f, nil
}

// copyIn copies path to the side store under oid. An existing copy is
// left as it is.
func (x *Externalizer) copyIn(path, oid string) error {
	if _, err := x.fs.Stat(oid); err == nil {
		return nil
	}

	dest := x.fs.Join(x.fs.Root(), oid)
	if err := x.fs.MkdirAll(".", 0o755); err != nil {
		return errors.FilesystemFailed("mkdir", x.fs.Root(), err)
	}

	src, err := os.Open(path)
	if err != nil {
		return errors.FilesystemFailed("open", path, err)
	}
	defer src.Close()

	tmp, err := util.TempFile(x.fs, "", ".tmp-"+oid+"-")
	if err != nil {
		return errors.FilesystemFailed("create", dest, err)
	}
	tmpName := tmp.Name()

	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(tmp, src, buf); err != nil {
		tmp.Close()
		x.fs.Remove(tmpName)
		return errors.FilesystemFailed("copy", dest, err)
	}
	if err := tmp.Close(); err != nil {
		x.fs.Remove(tmpName)
		return errors.FilesystemFailed("write", dest, err)
	}
	if err := x.fs.Rename(tmpName, oid); err != nil {
		x.fs.Remove(tmpName)
		return errors.FilesystemFailed("rename", dest, err)
	}
	return nil
}
