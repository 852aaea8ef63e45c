// Package sessions keeps the record of the open session of a project under
// its git directory, and derives closed sessions from history commits.
package sessions

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/grovetools/gitbutler/errors"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/oklog/ulid/v2"
)

const (
	metaDir    = "meta"
	fileID     = "id"
	fileStart  = "start"
	fileLast   = "last"
	fileBranch = "branch"
	fileCommit = "commit"
)

// Repo is the repository information a Store needs.
type Repo interface {
	GitDir() string
	Head() (string, plumbing.Hash, error)
}

// Store reads and writes the open session of one repository. It is safe for
// concurrent use.
type Store struct {
	repo  Repo
	dir   string
	newID func() string
	mu    sync.Mutex
}

// NewStore returns a Store keeping its record in sessionDir, relative to the
// repository's git directory.
func NewStore(repo Repo, sessionDir string) *Store {
	return &Store{
		repo:  repo,
		dir:   filepath.Join(repo.GitDir(), filepath.FromSlash(sessionDir)),
		newID: func() string { return ulid.Make().String() },
	}
}

// Dir returns the absolute session directory.
func (s *Store) Dir() string {
	return s.dir
}

// Current returns the open session, or nil when there is none.
func (s *Store) Current() (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current()
}

func (s *Store) current() (*models.Session, error) {
	start, ok, err := s.readMeta(fileStart)
	if err != nil || !ok {
		return nil, err
	}
	last, ok, err := s.readMeta(fileLast)
	if err != nil || !ok {
		return nil, err
	}

	startTS, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return nil, errors.FilesystemFailed("parse", s.metaPath(fileStart), err)
	}
	lastTS, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return nil, errors.FilesystemFailed("parse", s.metaPath(fileLast), err)
	}

	id, _, err := s.readMeta(fileID)
	if err != nil {
		return nil, err
	}
	branch, _, err := s.readMeta(fileBranch)
	if err != nil {
		return nil, err
	}
	commit, _, err := s.readMeta(fileCommit)
	if err != nil {
		return nil, err
	}

	return &models.Session{
		ID: id,
		Meta: models.SessionMeta{
			StartTS: startTS,
			LastTS:  lastTS,
			Branch:  branch,
			Commit:  commit,
		},
	}, nil
}

// Record notes activity at now. Without an open session a new one starts at
// now, capturing the current branch and commit; otherwise only its last
// activity time moves forward.
func (s *Store) Record(now time.Time) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := strconv.FormatInt(now.Unix(), 10)

	session, err := s.current()
	if err != nil {
		return nil, err
	}
	if session != nil {
		if now.Unix() > session.Meta.LastTS {
			if err := s.writeMeta(fileLast, ts); err != nil {
				return nil, err
			}
			session.Meta.LastTS = now.Unix()
		}
		return session, nil
	}

	branch, head, err := s.repo.Head()
	if err != nil {
		return nil, err
	}
	commit := ""
	if !head.IsZero() {
		commit = head.String()
	}

	session = &models.Session{
		ID: s.newID(),
		Meta: models.SessionMeta{
			StartTS: now.Unix(),
			LastTS:  now.Unix(),
			Branch:  branch,
			Commit:  commit,
		},
	}

	if err := os.MkdirAll(filepath.Join(s.dir, metaDir), 0o755); err != nil {
		return nil, errors.FilesystemFailed("mkdir", s.dir, err)
	}
	values := []struct{ name, value string }{
		{fileID, session.ID},
		{fileBranch, branch},
		{fileCommit, commit},
		{fileStart, ts},
		// last is written after start so a reader never sees last alone
		{fileLast, ts},
	}
	for _, v := range values {
		if err := s.writeMeta(v.name, v.value); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// DeleteCurrent removes the session record.
func (s *Store) DeleteCurrent() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return errors.FilesystemFailed("remove", s.dir, err)
	}
	return nil
}

func (s *Store) metaPath(name string) string {
	return filepath.Join(s.dir, metaDir, name)
}

func (s *Store) readMeta(name string) (string, bool, error) {
	data, err := os.ReadFile(s.metaPath(name))
	if stderrors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.FilesystemFailed("read", s.metaPath(name), err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

func (s *Store) writeMeta(name, value string) error {
	if err := os.WriteFile(s.metaPath(name), []byte(value), 0o644); err != nil {
		return errors.FilesystemFailed("write", s.metaPath(name), err)
	}
	return nil
}
