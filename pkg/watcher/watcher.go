// Package watcher closes the sessions of one project and records each as a
// snapshot commit on the project's history reference.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/grovetools/gitbutler/config"
	"github.com/grovetools/gitbutler/errors"
	"github.com/grovetools/gitbutler/git"
	"github.com/grovetools/gitbutler/pkg/history"
	"github.com/grovetools/gitbutler/pkg/ignore"
	"github.com/grovetools/gitbutler/pkg/lfs"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/grovetools/gitbutler/pkg/profiling"
	"github.com/grovetools/gitbutler/pkg/sessions"
	"github.com/grovetools/gitbutler/pkg/snapshot"
	"github.com/sirupsen/logrus"
)

// recordedIndexName is kept next to the session directory, outside of it,
// so it never becomes part of a snapshot.
const recordedIndexName = "gb/index"

// Notifier delivers closed sessions to whoever listens on a channel.
type Notifier interface {
	Notify(channel string, payload interface{}) error
}

// SessionStore is the open session record of a project.
type SessionStore interface {
	Current() (*models.Session, error)
	DeleteCurrent() error
}

// Watcher watches one project.
type Watcher struct {
	project  models.Project
	repo     *git.Repository
	records  *sessions.Store
	sessions SessionStore
	builder  *snapshot.Builder
	history  *history.Writer
	notifier Notifier
	policy   Policy
	interval time.Duration
	exclude  []string
	now      func() time.Time
	onFail   func(error)
	log      *logrus.Entry
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) {
		w.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// WithFailureHandler is called by Run with the error of every failed check.
func WithFailureHandler(fn func(error)) Option {
	return func(w *Watcher) {
		w.onFail = fn
	}
}

// WithSessionStore replaces the session record.
func WithSessionStore(s SessionStore) Option {
	return func(w *Watcher) {
		w.sessions = s
	}
}

// New opens the repository of project and wires a Watcher for it. Closed
// sessions are published to notifier.
func New(project models.Project, cfg *config.Config, notifier Notifier, opts ...Option) (*Watcher, error) {
	repo, err := git.Open(project.Path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		project:  project,
		repo:     repo,
		notifier: notifier,
		policy: Policy{
			IdleTimeout: cfg.Watcher.IdleDuration(),
			MaxAge:      cfg.Watcher.MaxAgeDuration(),
		},
		interval: cfg.Watcher.TickDuration(),
		exclude:  cfg.Watcher.Exclude,
		now:      time.Now,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.WithFields(logrus.Fields{
		"project": project.ID,
		"path":    repo.Workdir(),
	})

	store := sessions.NewStore(repo, cfg.Storage.SessionDir)
	w.records = store
	if w.sessions == nil {
		w.sessions = store
	}

	blobs := lfs.New(repo,
		filepath.Join(repo.GitDir(), filepath.FromSlash(cfg.Storage.LFSDir)),
		lfs.WithThreshold(cfg.Watcher.LargeFileThreshold),
		lfs.WithUppercaseDigest(cfg.Watcher.DigestCase == config.DigestUpper),
	)
	w.builder = snapshot.NewBuilder(repo, blobs, snapshot.Layout{
		Workdir:       repo.Workdir(),
		SessionDir:    store.Dir(),
		Reflog:        filepath.Join(repo.GitDir(), filepath.FromSlash(cfg.Storage.Reflog)),
		RecordedIndex: filepath.Join(repo.GitDir(), filepath.FromSlash(recordedIndexName)),
	}, snapshot.WithLogger(w.log))
	w.history = history.NewWriter(repo, cfg.Storage.HistoryRef, cfg.Storage.CommitMessage)

	return w, nil
}

// Project returns the watched project.
func (w *Watcher) Project() models.Project {
	return w.project
}

// Repository returns the project's repository.
func (w *Watcher) Repository() *git.Repository {
	return w.repo
}

// Sessions returns the on-disk session record of the project. Activity
// recorders share it with the watcher.
func (w *Watcher) Sessions() *sessions.Store {
	return w.records
}

// History returns the history writer.
func (w *Watcher) History() *history.Writer {
	return w.history
}

// Run checks the project, waits one interval, and repeats until ctx is
// canceled. The wait starts after a check completes, so checks never
// overlap. A failed check is logged and does not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.WithField("interval", w.interval.String()).Info("Watching project")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Stopped watching project")
			return nil
		case <-timer.C:
		}

		if _, err := w.Tick(ctx); err != nil && ctx.Err() == nil {
			w.log.WithError(err).
				WithField("code", errors.GetCode(err)).
				Error("Error while checking project for changes")
			if w.onFail != nil {
				w.onFail(err)
			}
		}
		timer.Reset(w.interval)
	}
}

// Tick closes the open session when the policy says it is over. It returns
// the closed session, or nil when nothing was closed.
func (w *Watcher) Tick(ctx context.Context) (*models.Session, error) {
	current, err := w.sessions.Current()
	if err != nil {
		return nil, err
	}
	if current == nil {
		w.log.Debug("No current session")
		return nil, nil
	}

	now := w.now()
	if !w.policy.ShouldClose(current.Meta, now) {
		sinceLast, sinceStart := Elapsed(current.Meta, now)
		w.log.WithFields(logrus.Fields{
			"since_last":  sinceLast,
			"since_start": sinceStart,
		}).Debug("Not ready to close session yet")
		return nil, nil
	}

	return w.close(ctx)
}

// Close snapshots the open session regardless of the policy. It returns nil
// when there is no open session.
func (w *Watcher) Close(ctx context.Context) (*models.Session, error) {
	current, err := w.sessions.Current()
	if err != nil || current == nil {
		return nil, err
	}
	return w.close(ctx)
}

func (w *Watcher) close(ctx context.Context) (*models.Session, error) {
	timer := profiling.Start("ignore")
	matcher, err := ignore.Load(w.repo.Workdir(), w.exclude, w.log)
	timer.Stop()
	if err != nil {
		return nil, err
	}

	timer = profiling.Start("build")
	res, err := w.builder.Build(ctx, matcher)
	timer.Stop()
	if err != nil {
		return nil, err
	}

	timer = profiling.Start("commit")
	hash, err := w.history.Append(res.Tree)
	timer.Stop()
	if err != nil {
		return nil, err
	}
	w.log.WithFields(logrus.Fields{
		"commit": hash.String(),
		"reused": res.Reused,
		"stored": res.Stored,
	}).Info("Wrote session commit")

	if err := w.builder.SaveIndex(res); err != nil {
		w.log.WithError(err).Warn("Failed to record snapshot index")
	}

	if err := w.sessions.DeleteCurrent(); err != nil {
		return nil, err
	}

	closed, err := sessions.FromCommit(w.repo, hash)
	if err != nil {
		return nil, err
	}

	w.notify(closed)
	return closed, nil
}

func (w *Watcher) notify(session *models.Session) {
	if w.notifier == nil {
		return
	}
	channel := models.SessionsChannel(w.project.ID)
	if err := w.notifier.Notify(channel, session); err != nil {
		w.log.WithError(errors.NotifyFailed(channel, err)).Error("Failed to deliver closed session")
	}
}

// Head returns the latest history commit of the project.
func (w *Watcher) Head() (plumbing.Hash, error) {
	return w.history.Head()
}
