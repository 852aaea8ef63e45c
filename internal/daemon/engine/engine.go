// Package engine orchestrates background collectors for the daemon.
package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/grovetools/gitbutler/internal/daemon/collector"
	"github.com/grovetools/gitbutler/internal/daemon/store"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/sirupsen/logrus"
)

// ProjectFactory creates the collector watching one project.
type ProjectFactory func(models.Project) collector.Collector

type running struct {
	project models.Project
	cancel  context.CancelFunc
	done    chan struct{}
}

// Engine manages and runs all collectors. Besides the registered
// collectors it runs one collector per project, kept in line with the
// project list by Sync.
type Engine struct {
	store      *store.Store
	factory    ProjectFactory
	collectors []collector.Collector
	logger     *logrus.Entry

	mu       sync.Mutex
	ctx      context.Context
	updates  chan store.Update
	projects map[string]*running
	pending  []models.Project
}

// New creates a new Engine instance.
func New(st *store.Store, factory ProjectFactory, logger *logrus.Entry) *Engine {
	return &Engine{
		store:    st,
		factory:  factory,
		logger:   logger,
		projects: make(map[string]*running),
	}
}

// Register adds a collector to the engine.
func (e *Engine) Register(c collector.Collector) {
	e.collectors = append(e.collectors, c)
}

// Start runs all collectors and blocks until context is canceled and every
// collector has returned.
func (e *Engine) Start(ctx context.Context) {
	updates := make(chan store.Update, 100)
	var wg sync.WaitGroup

	e.mu.Lock()
	e.ctx = ctx
	e.updates = updates
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	if pending != nil {
		e.Sync(pending)
	}

	// 1. Start Update Consumer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-updates:
				e.store.ApplyUpdate(u)
				if projects, ok := u.Payload.([]models.Project); ok && u.Type == store.UpdateProjects {
					e.Sync(projects)
				}
			}
		}
	}()

	// 2. Start Collectors
	for _, c := range e.collectors {
		wg.Add(1)
		go func(col collector.Collector) {
			defer wg.Done()
			e.logger.WithField("collector", col.Name()).Info("Starting collector")
			if err := col.Run(ctx, e.store, updates); err != nil {
				e.logger.WithField("collector", col.Name()).WithError(err).Error("Collector failed")
			}
		}(c)
	}

	<-ctx.Done()
	e.Stop()
	wg.Wait()
}

// Sync starts a collector for every project not yet watched and stops
// those of projects no longer listed. A project whose path changed is
// restarted. Before Start the list is kept until the engine runs.
func (e *Engine) Sync(projects []models.Project) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil {
		e.pending = append([]models.Project(nil), projects...)
		return
	}
	if e.ctx.Err() != nil {
		return
	}

	wanted := make(map[string]models.Project, len(projects))
	for _, p := range projects {
		wanted[p.ID] = p
	}

	for id, r := range e.projects {
		if p, ok := wanted[id]; ok && p == r.project {
			continue
		}
		e.logger.WithField("project", id).Info("Stopping project collector")
		r.cancel()
		delete(e.projects, id)
	}

	for id, p := range wanted {
		if _, ok := e.projects[id]; ok {
			continue
		}
		e.start(p)
	}
}

// start must be called with e.mu held.
func (e *Engine) start(p models.Project) {
	ctx, cancel := context.WithCancel(e.ctx)
	r := &running{project: p, cancel: cancel, done: make(chan struct{})}
	e.projects[p.ID] = r

	col := e.factory(p)
	log := e.logger.WithField("collector", col.Name())
	log.Info("Starting collector")

	go func() {
		defer close(r.done)
		if err := col.Run(ctx, e.store, e.updates); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("Collector failed")
			e.store.ApplyUpdate(store.Update{
				Type:      store.UpdateTickFailed,
				ProjectID: p.ID,
				Payload:   err,
			})
		}
	}()
}

// Stop cancels every project collector and waits for them to return.
func (e *Engine) Stop() {
	e.mu.Lock()
	stopping := make([]*running, 0, len(e.projects))
	for id, r := range e.projects {
		r.cancel()
		stopping = append(stopping, r)
		delete(e.projects, id)
	}
	e.mu.Unlock()

	for _, r := range stopping {
		<-r.done
	}
}

// Restart stops every project collector and starts it again, so a
// changed factory takes effect.
func (e *Engine) Restart() {
	e.mu.Lock()
	list := make([]models.Project, 0, len(e.projects))
	for _, r := range e.projects {
		list = append(list, r.project)
	}
	e.mu.Unlock()

	e.Stop()
	e.Sync(list)
}

// Running returns the ids of the watched projects in order.
func (e *Engine) Running() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.projects))
	for id := range e.projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Store returns the engine's state store.
func (e *Engine) Store() *store.Store {
	return e.store
}
