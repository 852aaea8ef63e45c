// Package activity turns changes in a project's working tree into session
// activity.
package activity

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/gitbutler/errors"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is the minimum pause between two recorded activities.
const DefaultDebounce = 500 * time.Millisecond

// Recorder notes activity on the open session.
type Recorder interface {
	Record(now time.Time) (*models.Session, error)
}

// IgnoreChecker reports ignored working tree paths.
type IgnoreChecker interface {
	IsIgnored(rel string, isDir bool) bool
}

// Watcher records activity for every relevant change below a root.
type Watcher struct {
	root     string
	recorder Recorder
	ignore   IgnoreChecker
	debounce time.Duration
	now      func() time.Time
	fsw      *fsnotify.Watcher
	log      *logrus.Entry

	mu         sync.Mutex
	lastRecord time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the minimum pause between two recorded activities.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

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

// New watches every directory below root that is not ignored. Changes are
// reported to recorder once Run is called.
func New(root string, recorder Recorder, ignore IgnoreChecker, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.FilesystemFailed("watch", root, err)
	}

	w := &Watcher{
		root:     root,
		recorder: recorder,
		ignore:   ignore,
		debounce: DefaultDebounce,
		now:      time.Now,
		fsw:      fsw,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run dispatches file system events until ctx is canceled, then releases
// the watches.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("File watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}

// Close releases the watches without waiting for Run.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	// Permission changes alone are not edits
	if event.Op == fsnotify.Chmod {
		return
	}

	rel, ok := w.relative(event.Name)
	if !ok {
		return
	}

	isDir := false
	if event.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			isDir = true
		}
	}
	if !w.relevant(rel, isDir) {
		return
	}

	if isDir {
		if err := w.addTree(event.Name); err != nil {
			w.log.WithError(err).WithField("dir", rel).Warn("Failed to watch new directory")
		}
	}

	w.record(rel)
}

// relevant reports whether a change at rel counts as activity.
func (w *Watcher) relevant(rel string, isDir bool) bool {
	if rel == "" {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".git" {
			return false
		}
	}
	return w.ignore == nil || !w.ignore.IsIgnored(rel, isDir)
}

func (w *Watcher) record(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if !w.lastRecord.IsZero() && now.Sub(w.lastRecord) < w.debounce {
		return
	}
	w.lastRecord = now

	session, err := w.recorder.Record(now)
	if err != nil {
		w.log.WithError(err).WithField("file", rel).Error("Failed to record activity")
		return
	}
	w.log.WithFields(logrus.Fields{
		"file":    rel,
		"session": session.ID,
	}).Debug("Recorded activity")
}

func (w *Watcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// addTree watches dir and every directory below it that is neither .git
// nor ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories can disappear between the event and the walk
			if os.IsNotExist(err) {
				return nil
			}
			return errors.FilesystemFailed("watch", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if rel, ok := w.relative(path); ok && w.ignore != nil && w.ignore.IsIgnored(rel, true) {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(path); err != nil {
			return errors.FilesystemFailed("watch", path, err)
		}
		return nil
	})
}
