package daemon

import (
	"context"
	"sort"

	"github.com/grovetools/gitbutler/config"
	"github.com/grovetools/gitbutler/errors"
	"github.com/grovetools/gitbutler/git"
	"github.com/grovetools/gitbutler/pkg/history"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/grovetools/gitbutler/pkg/projects"
	"github.com/grovetools/gitbutler/pkg/sessions"
)

// DefaultHistoryLimit is how many sessions LocalClient reads per project.
const DefaultHistoryLimit = 50

// LocalClient implements Client by calling library functions directly.
// This is used when the daemon is not running, providing the same API
// but executing all operations in-process.
type LocalClient struct {
	registry *projects.Registry
	cfg      *config.Config
	limit    int
}

// NewLocalClient creates a new LocalClient.
func NewLocalClient(registry *projects.Registry, cfg *config.Config) *LocalClient {
	return &LocalClient{registry: registry, cfg: cfg, limit: DefaultHistoryLimit}
}

// GetProjects returns the projects of the registry. None is watched.
func (c *LocalClient) GetProjects(ctx context.Context) ([]ProjectStatus, error) {
	list, err := c.registry.List()
	if err != nil {
		return nil, err
	}
	result := make([]ProjectStatus, 0, len(list))
	for _, p := range list {
		result = append(result, ProjectStatus{Project: p})
	}
	return result, nil
}

// GetSessions reads closed sessions from the history of the projects.
func (c *LocalClient) GetSessions(ctx context.Context, projectID string) ([]*models.Session, error) {
	var list []models.Project
	if projectID != "" {
		p, err := c.registry.Get(projectID)
		if err != nil {
			return nil, err
		}
		list = []models.Project{p}
	} else {
		var err error
		if list, err = c.registry.List(); err != nil {
			return nil, err
		}
	}

	result := []*models.Session{}
	for _, p := range list {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := ReadHistory(p.Path, c.cfg, c.limit)
		if err != nil {
			return nil, err
		}
		result = append(result, found...)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Meta.LastTS > result[j].Meta.LastTS
	})
	return result, nil
}

// StreamEvents returns an error for LocalClient since streaming is only available via daemon.
func (c *LocalClient) StreamEvents(ctx context.Context, projectID string) (<-chan models.Event, error) {
	return nil, errors.New(errors.ErrCodeDaemonUnavailable, "streaming not available in local mode; start the daemon for real-time updates")
}

// GetConfig returns an error for LocalClient since config is only available via daemon.
func (c *LocalClient) GetConfig(ctx context.Context) (*RunningConfig, error) {
	return nil, errors.New(errors.ErrCodeDaemonUnavailable, "config not available in local mode; start the daemon to view running config")
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close is a no-op for LocalClient.
func (c *LocalClient) Close() error {
	return nil
}

// ReadHistory returns up to limit closed sessions of the repository at
// path, newest first. A limit of zero reads the whole history.
func ReadHistory(path string, cfg *config.Config, limit int) ([]*models.Session, error) {
	repo, err := git.Open(path)
	if err != nil {
		return nil, err
	}

	commits, err := history.NewWriter(repo, cfg.Storage.HistoryRef, cfg.Storage.CommitMessage).Log(limit)
	if err != nil {
		return nil, err
	}

	result := make([]*models.Session, 0, len(commits))
	for _, commit := range commits {
		s, err := sessions.FromCommit(repo, commit.Hash)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
