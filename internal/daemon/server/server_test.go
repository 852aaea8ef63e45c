package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/gitbutler/internal/daemon/collector"
	"github.com/grovetools/gitbutler/internal/daemon/engine"
	"github.com/grovetools/gitbutler/internal/daemon/store"
	"github.com/grovetools/gitbutler/pkg/daemon"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleCollector struct{ name string }

func (c idleCollector) Name() string { return c.name }

func (c idleCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	<-ctx.Done()
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store, *engine.Engine) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logrus.NewEntry(logger)

	st := store.New(0)
	eng := engine.New(st, func(p models.Project) collector.Collector {
		return idleCollector{name: p.ID}
	}, log)

	srv := New(log)
	srv.SetEngine(eng)
	srv.SetRunningConfig(&RunningConfig{TickInterval: "10s", PID: 42})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st, eng
}

func getJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}

func TestEngineMissing(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	ts := httptest.NewServer(New(logrus.NewEntry(logger)).Handler())
	defer ts.Close()

	for _, path := range []string{"/api/projects", "/api/sessions", "/api/state", "/api/config"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
}

func TestProjectsAndSessions(t *testing.T) {
	ts, st, _ := newTestServer(t)

	st.ApplyUpdate(store.Update{Type: store.UpdateProjects, Payload: []models.Project{
		{ID: "p1", Name: "one", Path: "/one"},
		{ID: "p2", Name: "two", Path: "/two"},
	}})
	require.NoError(t, st.Notify(models.SessionsChannel("p1"), &models.Session{ID: "s1", Hash: "abc", Meta: models.SessionMeta{LastTS: 5}}))

	var projects []daemon.ProjectStatus
	getJSON(t, ts.URL+"/api/projects", &projects)
	require.Len(t, projects, 2)
	assert.Equal(t, "one", projects[0].Name)
	assert.Equal(t, "abc", projects[0].LastSession)
	assert.False(t, projects[0].Watching)

	var sessions []*models.Session
	getJSON(t, ts.URL+"/api/sessions?project=p1", &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, "abc", sessions[0].Hash)

	sessions = nil
	getJSON(t, ts.URL+"/api/sessions?project=p2", &sessions)
	assert.Empty(t, sessions)

	var cfg RunningConfig
	getJSON(t, ts.URL+"/api/config", &cfg)
	assert.Equal(t, 42, cfg.PID)
}

func TestStream(t *testing.T) {
	ts, st, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream?project=p1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	type streamed struct {
		Type      models.EventType `json:"type"`
		ProjectID string           `json:"project_id"`
		Channel   string           `json:"channel"`
		Payload   models.Session   `json:"payload"`
	}
	events := make(chan streamed, 10)
	go func() {
		for {
			var ev streamed
			if err := conn.ReadJSON(&ev); err != nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	// The subscription exists only once the handler runs, so publish until
	// something arrives
	var event streamed
	require.Eventually(t, func() bool {
		_ = st.Notify(models.SessionsChannel("p2"), &models.Session{ID: "other"})
		_ = st.Notify(models.SessionsChannel("p1"), &models.Session{ID: "mine", Hash: "h1"})
		select {
		case event = <-events:
			return true
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, models.EventSessionClosed, event.Type)
	assert.Equal(t, "p1", event.ProjectID)
	assert.Equal(t, "project://p1/sessions", event.Channel)
	assert.Equal(t, "h1", event.Payload.Hash)
}
