// Package index records file metadata as git index entries and decides when
// a previously hashed file can be reused without reading it again.
//
// Reuse is a heuristic: two entries are treated as the same content when
// their modification time (seconds and nanoseconds), size and mode match.
// A file rewritten within one mtime tick keeping its size is not detected.
package index

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/grovetools/gitbutler/errors"
)

// Normal is the stage of an entry outside a merge conflict. go-git names
// stage 1 Merged; git writes ordinary entries with stage 0.
const Normal gitindex.Stage = 0

// Metadata is the identity-relevant subset of a file's stat information.
type Metadata struct {
	ModifiedAt time.Time
	CreatedAt  time.Time
	Dev        uint32
	Inode      uint32
	UID        uint32
	GID        uint32
	Mode       filemode.FileMode
	Size       int64
}

// Stat reads the metadata of the file at path without following symlinks.
func Stat(path string) (Metadata, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Metadata{}, errors.FilesystemFailed("stat", path, err)
	}
	return FromFileInfo(info)
}

// FromFileInfo converts info to Metadata. Files of 4 GiB or more are
// rejected since index entries record sizes in 32 bits.
func FromFileInfo(info os.FileInfo) (Metadata, error) {
	mode, err := filemode.NewFromOSFileMode(info.Mode())
	if err != nil {
		return Metadata{}, errors.FilesystemFailed("mode", info.Name(), err)
	}

	if info.Size() > math.MaxUint32 {
		return Metadata{}, errors.FilesystemFailed("stat", info.Name(),
			fmt.Errorf("size %d does not fit in an index entry", info.Size()))
	}

	m := Metadata{
		ModifiedAt: info.ModTime(),
		CreatedAt:  info.ModTime(),
		Mode:       mode,
		Size:       info.Size(),
	}
	fillSys(&m, info)
	return m, nil
}

// Entry builds an index entry for name with content id hash. The entry is a
// normal stage-0 entry without extended flags.
func (m Metadata) Entry(name string, hash plumbing.Hash) *gitindex.Entry {
	return &gitindex.Entry{
		Hash:       hash,
		Name:       name,
		CreatedAt:  m.CreatedAt,
		ModifiedAt: m.ModifiedAt,
		Dev:        m.Dev,
		Inode:      m.Inode,
		Mode:       m.Mode,
		UID:        m.UID,
		GID:        m.GID,
		Size:       uint32(m.Size),
		Stage:      Normal,
	}
}

// Unchanged reports whether prev still describes a file with metadata m.
// Only mtime seconds, mtime nanoseconds, size and mode are compared.
func Unchanged(prev *gitindex.Entry, m Metadata) bool {
	if prev == nil {
		return false
	}
	return prev.ModifiedAt.Unix() == m.ModifiedAt.Unix() &&
		prev.ModifiedAt.Nanosecond() == m.ModifiedAt.Nanosecond() &&
		prev.Size == uint32(m.Size) &&
		prev.Mode == m.Mode
}
