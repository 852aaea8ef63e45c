package cmd

import (
	"path/filepath"

	"github.com/grovetools/gitbutler/git"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/grovetools/gitbutler/pkg/projects"
)

// resolveProject returns the registered project of the repository
// containing path. An unregistered repository gets an ad-hoc project named
// after it.
func resolveProject(registry *projects.Registry, path string) (models.Project, error) {
	root, err := git.FindRoot(path)
	if err != nil {
		return models.Project{}, err
	}

	p, ok, err := registry.Lookup(root)
	if err != nil {
		return models.Project{}, err
	}
	if ok {
		return p, nil
	}
	return models.Project{ID: "local", Name: filepath.Base(root), Path: root}, nil
}
