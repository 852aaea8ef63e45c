// Package projects manages the registry of watched projects.
package projects

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/grovetools/gitbutler/errors"
	"github.com/grovetools/gitbutler/git"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/grovetools/gitbutler/pkg/paths"
	"github.com/grovetools/gitbutler/util/pathutil"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type registryFile struct {
	Projects []models.Project `yaml:"projects"`
}

// Registry is a YAML file listing projects. It is safe for concurrent use
// within one process.
type Registry struct {
	path  string
	mu    sync.Mutex
	newID func() string
}

// NewRegistry returns a registry stored at path.
func NewRegistry(path string) *Registry {
	return &Registry{
		path:  path,
		newID: uuid.NewString,
	}
}

// Default returns the registry in the gitbutler config directory.
func Default() *Registry {
	return NewRegistry(paths.ProjectsFile())
}

// Path returns the registry file path.
func (r *Registry) Path() string {
	return r.path
}

// List returns all projects ordered by name. A missing registry file holds
// no projects.
func (r *Registry) List() ([]models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	projects, err := r.read()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].Name < projects[j].Name
	})
	return projects, nil
}

// Get returns the project with the given id.
func (r *Registry) Get(id string) (models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	projects, err := r.read()
	if err != nil {
		return models.Project{}, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Project{}, errors.ProjectNotFound(id)
}

// Lookup returns the project registered for the working directory path.
func (r *Registry) Lookup(path string) (models.Project, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	projects, err := r.read()
	if err != nil {
		return models.Project{}, false, err
	}
	for _, p := range projects {
		if pathutil.Same(p.Path, path) {
			return p, true, nil
		}
	}
	return models.Project{}, false, nil
}

// Add registers the repository at path. An empty name defaults to the
// repository name.
func (r *Registry) Add(path, name string) (models.Project, error) {
	expanded, err := pathutil.Expand(path)
	if err != nil {
		return models.Project{}, errors.FilesystemFailed("resolve", path, err)
	}
	repo, err := git.Open(expanded)
	if err != nil {
		return models.Project{}, err
	}
	if name == "" {
		name = repo.Name()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	projects, err := r.read()
	if err != nil {
		return models.Project{}, err
	}
	for _, p := range projects {
		if pathutil.Same(p.Path, repo.Workdir()) {
			return models.Project{}, errors.New(errors.ErrCodeInvalidInput, "project already registered").
				WithDetail("id", p.ID).
				WithDetail("path", p.Path)
		}
	}

	project := models.Project{
		ID:   r.newID(),
		Name: name,
		Path: repo.Workdir(),
	}
	if err := r.write(append(projects, project)); err != nil {
		return models.Project{}, err
	}
	return project, nil
}

// Remove unregisters the project with the given id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	projects, err := r.read()
	if err != nil {
		return err
	}
	for i, p := range projects {
		if p.ID == id {
			return r.write(append(projects[:i], projects[i+1:]...))
		}
	}
	return errors.ProjectNotFound(id)
}

func (r *Registry) read() ([]models.Project, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.FilesystemFailed("read", r.path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.ConfigInvalid(err.Error()).WithDetail("path", r.path)
	}
	return file.Projects, nil
}

func (r *Registry) write(projects []models.Project) error {
	data, err := yaml.Marshal(registryFile{Projects: projects})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "encode project registry")
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.FilesystemFailed("mkdir", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".projects-*.yml")
	if err != nil {
		return errors.FilesystemFailed("create", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.FilesystemFailed("write", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return errors.FilesystemFailed("write", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return errors.FilesystemFailed("rename", r.path, err)
	}
	return nil
}

// Watch calls onChange with the reloaded project list each time the
// registry file changes, after debounce of quiet. It blocks until ctx is
// canceled.
func (r *Registry) Watch(ctx context.Context, debounce time.Duration, log *logrus.Entry, onChange func([]models.Project)) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.FilesystemFailed("mkdir", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.FilesystemFailed("watch", dir, err)
	}
	defer watcher.Close()

	// The directory is watched since the file is replaced on every write
	if err := watcher.Add(dir); err != nil {
		return errors.FilesystemFailed("watch", dir, err)
	}

	reload := func() {
		projects, err := r.List()
		if err != nil {
			log.WithError(err).Error("Failed to reload project registry")
			return
		}
		log.WithField("projects", len(projects)).Info("Project registry changed")
		onChange(projects)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) || event.Op == fsnotify.Chmod {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Registry watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}
