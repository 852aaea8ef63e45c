package sessions

import (
	stderrors "errors"
	"path"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/grovetools/gitbutler/errors"
	"github.com/grovetools/gitbutler/pkg/models"
)

// CommitReader reads history commits and files inside their trees.
type CommitReader interface {
	ReadCommit(hash plumbing.Hash) (*object.Commit, error)
	ReadFile(tree plumbing.Hash, path string) ([]byte, error)
}

// Tree names of a snapshot commit.
const (
	TreeWorkdir = "wd"
	TreeSession = "session"
	TreeLogs    = "logs"
	LogName     = "HEAD"
)

// FromCommit derives the closed session snapshotted by a history commit.
func FromCommit(r CommitReader, hash plumbing.Hash) (*models.Session, error) {
	commit, err := r.ReadCommit(hash)
	if err != nil {
		return nil, err
	}

	read := func(name string, required bool) (string, error) {
		data, err := r.ReadFile(commit.TreeHash, path.Join(TreeSession, metaDir, name))
		if err != nil {
			if !required && stderrors.Is(err, object.ErrFileNotFound) {
				return "", nil
			}
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}

	session := &models.Session{Hash: hash.String()}

	if session.ID, err = read(fileID, false); err != nil {
		return nil, err
	}
	if session.Meta.Branch, err = read(fileBranch, false); err != nil {
		return nil, err
	}
	if session.Meta.Commit, err = read(fileCommit, false); err != nil {
		return nil, err
	}

	start, err := read(fileStart, true)
	if err != nil {
		return nil, err
	}
	if session.Meta.StartTS, err = strconv.ParseInt(start, 10, 64); err != nil {
		return nil, errors.StoreFailed("parse session start", err).WithDetail("commit", hash.String())
	}
	last, err := read(fileLast, true)
	if err != nil {
		return nil, err
	}
	if session.Meta.LastTS, err = strconv.ParseInt(last, 10, 64); err != nil {
		return nil, errors.StoreFailed("parse session last", err).WithDetail("commit", hash.String())
	}

	reflog, err := r.ReadFile(commit.TreeHash, path.Join(TreeLogs, LogName))
	switch {
	case err == nil:
		session.Activity = ParseReflog(reflog, session.Meta.StartTS, session.Meta.LastTS)
	case stderrors.Is(err, object.ErrFileNotFound):
	default:
		return nil, err
	}
	if session.Activity == nil {
		session.Activity = []models.Activity{}
	}

	return session, nil
}
