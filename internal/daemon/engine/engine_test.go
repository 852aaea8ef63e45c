package engine

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/gitbutler/errors"
	"github.com/grovetools/gitbutler/internal/daemon/collector"
	"github.com/grovetools/gitbutler/internal/daemon/store"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollector struct {
	name    string
	err     error
	started chan string
	stopped chan string
}

func (c *fakeCollector) Name() string { return c.name }

func (c *fakeCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	c.started <- c.name
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	c.stopped <- c.name
	return nil
}

type projectList struct {
	projects []models.Project
}

// Run emits a fixed project list, like the registry collector does.
func (c *projectList) Name() string { return "list" }

func (c *projectList) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	updates <- store.Update{Type: store.UpdateProjects, Payload: c.projects}
	<-ctx.Done()
	return nil
}

type harness struct {
	engine  *Engine
	started chan string
	stopped chan string
	mu      sync.Mutex
	failing map[string]error
}

func newHarness() *harness {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := &harness{
		started: make(chan string, 10),
		stopped: make(chan string, 10),
		failing: map[string]error{},
	}
	h.engine = New(store.New(0), func(p models.Project) collector.Collector {
		h.mu.Lock()
		defer h.mu.Unlock()
		return &fakeCollector{name: p.ID, err: h.failing[p.ID], started: h.started, stopped: h.stopped}
	}, logrus.NewEntry(logger))
	return h
}

func receive(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
		return ""
	}
}

func TestSyncStartsAndStopsProjects(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.engine.Start(ctx)
		close(done)
	}()

	// Sync before the engine runs is deferred
	require.Eventually(t, func() bool {
		h.engine.mu.Lock()
		defer h.engine.mu.Unlock()
		return h.engine.ctx != nil
	}, time.Second, time.Millisecond)

	h.engine.Sync([]models.Project{{ID: "a", Path: "/a"}, {ID: "b", Path: "/b"}})
	got := []string{receive(t, h.started), receive(t, h.started)}
	assert.ElementsMatch(t, []string{"a", "b"}, got)
	assert.Equal(t, []string{"a", "b"}, h.engine.Running())

	h.engine.Sync([]models.Project{{ID: "b", Path: "/b"}, {ID: "c", Path: "/c"}})
	assert.Equal(t, "a", receive(t, h.stopped))
	assert.Equal(t, "c", receive(t, h.started))
	assert.Equal(t, []string{"b", "c"}, h.engine.Running())

	// A moved project is restarted
	h.engine.Sync([]models.Project{{ID: "b", Path: "/moved"}, {ID: "c", Path: "/c"}})
	assert.Equal(t, "b", receive(t, h.stopped))
	assert.Equal(t, "b", receive(t, h.started))

	h.engine.Restart()
	assert.ElementsMatch(t, []string{"b", "c"}, []string{receive(t, h.stopped), receive(t, h.stopped)})
	assert.ElementsMatch(t, []string{"b", "c"}, []string{receive(t, h.started), receive(t, h.started)})

	cancel()
	<-done
	assert.ElementsMatch(t, []string{"b", "c"}, []string{receive(t, h.stopped), receive(t, h.stopped)})
	assert.Empty(t, h.engine.Running())
}

func TestPendingSyncAndProjectUpdates(t *testing.T) {
	h := newHarness()
	h.engine.Sync([]models.Project{{ID: "early"}})
	h.engine.Register(&projectList{projects: []models.Project{{ID: "early"}, {ID: "listed"}}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.engine.Start(ctx)
		close(done)
	}()

	assert.Equal(t, "early", receive(t, h.started))
	assert.Equal(t, "listed", receive(t, h.started))
	require.Eventually(t, func() bool {
		return len(h.engine.Store().GetProjects()) == 2
	}, 5*time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestFailedCollectorIsRecorded(t *testing.T) {
	h := newHarness()
	h.failing["bad"] = errors.NotARepository("/nowhere", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.engine.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		h.engine.mu.Lock()
		defer h.engine.mu.Unlock()
		return h.engine.ctx != nil
	}, time.Second, time.Millisecond)

	h.engine.Sync([]models.Project{{ID: "bad"}})
	receive(t, h.started)
	require.Eventually(t, func() bool {
		return h.engine.Store().GetFailure("bad") != nil
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, "NOT_A_REPOSITORY", h.engine.Store().GetFailure("bad").Code)

	cancel()
	<-done
}
