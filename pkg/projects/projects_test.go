package projects

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/grovetools/gitbutler/errors"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	_, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	return dir
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "gitbutler", "projects.yml"))

	projects, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, projects)

	alpha := newRepo(t, "alpha")
	beta := newRepo(t, "beta")

	p1, err := reg.Add(beta, "")
	require.NoError(t, err)
	assert.Equal(t, "beta", p1.Name)
	assert.NotEmpty(t, p1.ID)

	p2, err := reg.Add(alpha, "Alpha Project")
	require.NoError(t, err)
	assert.NotEqual(t, p1.ID, p2.ID)

	projects, err = reg.List()
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Alpha Project", projects[0].Name)

	got, err := reg.Get(p1.ID)
	require.NoError(t, err)
	assert.Equal(t, p1, got)

	require.NoError(t, reg.Remove(p1.ID))
	_, err = reg.Get(p1.ID)
	assert.True(t, errors.Is(err, errors.ErrCodeProjectNotFound))
	assert.True(t, errors.Is(reg.Remove(p1.ID), errors.ErrCodeProjectNotFound))
}

func TestAddRejects(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "projects.yml"))

	_, err := reg.Add(t.TempDir(), "")
	assert.True(t, errors.Is(err, errors.ErrCodeNotARepository))

	repo := newRepo(t, "dup")
	_, err = reg.Add(repo, "")
	require.NoError(t, err)
	_, err = reg.Add(repo+string(filepath.Separator), "again")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestLookup(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "projects.yml"))
	repo := newRepo(t, "lookup")
	p, err := reg.Add(repo, "")
	require.NoError(t, err)

	link := filepath.Join(t.TempDir(), "via-link")
	require.NoError(t, os.Symlink(repo, link))

	got, ok, err := reg.Lookup(link)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)

	_, err = reg.Add(link, "")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, ok, err = reg.Lookup(t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yml")
	require.NoError(t, os.WriteFile(path, []byte("projects: [unclosed"), 0o644))

	_, err := NewRegistry(path).List()
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yml")
	reg := NewRegistry(path)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var mu sync.Mutex
	var seen [][]models.Project

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- reg.Watch(ctx, 20*time.Millisecond, logrus.NewEntry(logger), func(p []models.Project) {
			mu.Lock()
			seen = append(seen, p)
			mu.Unlock()
		})
	}()

	repo := newRepo(t, "watched")
	require.Eventually(t, func() bool {
		// The watch may not be established on the first attempt, so the
		// file is rewritten until a reload is seen
		projects, _ := reg.List()
		if len(projects) == 0 {
			_, _ = reg.Add(repo, "")
		} else {
			data, _ := os.ReadFile(path)
			_ = os.WriteFile(path, data, 0o644)
		}
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && len(seen[len(seen)-1]) == 1
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
