package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/gitbutler/config"
	"github.com/sirupsen/logrus"
)

const defaultReloadDelay = 100 * time.Millisecond

// ConfigWatcher reloads the gitbutler configuration after its files in the
// config directory settle. Invalid configurations are logged and skipped,
// leaving the previous one in effect.
type ConfigWatcher struct {
	dir      string
	delay    time.Duration
	fs       *fsnotify.Watcher
	log      *logrus.Entry
	onReload func(*config.Config)

	// resolved symlink target -> link name inside dir
	links map[string]string

	mu      sync.Mutex
	pending *time.Timer
	changed string
}

// NewConfigWatcher watches dir, creating it when missing. Reloads run
// once no relevant event has arrived for delay.
func NewConfigWatcher(dir string, delay time.Duration, log *logrus.Entry, onReload func(*config.Config)) (*ConfigWatcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(dir); err != nil {
		_ = fs.Close()
		return nil, err
	}
	if delay <= 0 {
		delay = defaultReloadDelay
	}

	w := &ConfigWatcher{
		dir:      dir,
		delay:    delay,
		fs:       fs,
		log:      log,
		onReload: onReload,
		links:    make(map[string]string),
	}
	w.followLinks()
	return w, nil
}

// followLinks adds the directories of symlinked config files to the watch
// list; fsnotify reports events on the target, not the link.
func (w *ConfigWatcher) followLinks() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	watched := map[string]bool{w.dir: true}
	for _, entry := range entries {
		if !isConfigFile(entry.Name()) || entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := filepath.EvalSymlinks(filepath.Join(w.dir, entry.Name()))
		if err != nil {
			w.log.WithError(err).Warnf("Cannot resolve %s", entry.Name())
			continue
		}
		w.links[target] = entry.Name()

		targetDir := filepath.Dir(target)
		if watched[targetDir] {
			continue
		}
		if err := w.fs.Add(targetDir); err != nil {
			w.log.WithError(err).Warnf("Cannot watch %s", targetDir)
			continue
		}
		watched[targetDir] = true
		w.log.Debugf("Following %s -> %s", entry.Name(), targetDir)
	}
}

// isConfigFile matches gitbutler.{yml,yaml,toml} and its override variants.
func isConfigFile(name string) bool {
	if !strings.HasPrefix(name, "gitbutler.") {
		return false
	}
	switch filepath.Ext(name) {
	case ".yml", ".yaml", ".toml":
		return true
	}
	return false
}

// Start processes events until ctx is done, then closes the watcher.
func (w *ConfigWatcher) Start(ctx context.Context) {
	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Error("Config watch failed")
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			name, linked := w.links[ev.Name]
			if !linked {
				name = filepath.Base(ev.Name)
			}
			if isConfigFile(name) {
				w.schedule(name)
			}
		}
	}
}

// schedule (re)arms the reload timer so a burst of writes reloads once.
func (w *ConfigWatcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed = name
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.delay, w.reload)
}

func (w *ConfigWatcher) reload() {
	w.mu.Lock()
	name := w.changed
	w.pending = nil
	w.mu.Unlock()

	w.log.Infof("Config changed: %s", name)
	cfg, err := config.LoadFromWithLogger(w.dir, w.log.Logger)
	if err != nil {
		w.log.WithError(err).Error("Keeping previous configuration")
		return
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

func (w *ConfigWatcher) stop() {
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()
	_ = w.fs.Close()
}

// Close releases the underlying fsnotify watcher.
func (w *ConfigWatcher) Close() error {
	return w.fs.Close()
}
