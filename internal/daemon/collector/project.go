package collector

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/gitbutler/config"
	"github.com/grovetools/gitbutler/internal/daemon/store"
	"github.com/grovetools/gitbutler/pkg/activity"
	"github.com/grovetools/gitbutler/pkg/ignore"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/grovetools/gitbutler/pkg/watcher"
	"github.com/sirupsen/logrus"
)

// ProjectCollector watches one project: working tree activity opens and
// extends sessions, and the session watcher closes them.
type ProjectCollector struct {
	project models.Project
	cfg     *config.Config
	logger  *logrus.Entry
}

// NewProjectCollector creates a collector for project.
func NewProjectCollector(project models.Project, cfg *config.Config, logger *logrus.Entry) *ProjectCollector {
	return &ProjectCollector{
		project: project,
		cfg:     cfg,
		logger:  logger,
	}
}

// Name returns the collector's name.
func (c *ProjectCollector) Name() string { return "project:" + c.project.ID }

// Run watches the project until ctx is canceled. Closed sessions are
// delivered through st.
func (c *ProjectCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	w, err := watcher.New(c.project, c.cfg, st,
		watcher.WithLogger(c.logger),
		watcher.WithFailureHandler(func(err error) {
			emit(ctx, updates, store.Update{
				Type:      store.UpdateTickFailed,
				ProjectID: c.project.ID,
				Payload:   err,
			})
		}),
	)
	if err != nil {
		return err
	}

	workdir := w.Repository().Workdir()
	var wg sync.WaitGroup

	matcher, err := ignore.Load(workdir, c.cfg.Watcher.Exclude, c.logger)
	if err == nil {
		var rec *activity.Watcher
		rec, err = activity.New(workdir, w.Sessions(), matcher,
			activity.WithDebounce(time.Duration(c.cfg.Daemon.ActivityDebounceMs)*time.Millisecond),
			activity.WithLogger(c.logger.WithField("component", "activity")),
		)
		if err == nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = rec.Run(ctx)
			}()
		}
	}
	if err != nil {
		// Sessions can still be opened by other writers
		c.logger.WithError(err).Warn("Activity tracking disabled for project")
	}

	err = w.Run(ctx)
	wg.Wait()
	return err
}
