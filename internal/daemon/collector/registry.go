package collector

import (
	"context"
	"time"

	"github.com/grovetools/gitbutler/internal/daemon/store"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/grovetools/gitbutler/pkg/projects"
	"github.com/sirupsen/logrus"
)

// RegistryCollector publishes the project registry and every change to it.
type RegistryCollector struct {
	registry *projects.Registry
	debounce time.Duration
	logger   *logrus.Entry
}

// NewRegistryCollector creates a new RegistryCollector.
func NewRegistryCollector(registry *projects.Registry, debounce time.Duration, logger *logrus.Entry) *RegistryCollector {
	return &RegistryCollector{
		registry: registry,
		debounce: debounce,
		logger:   logger,
	}
}

// Name returns the collector's name.
func (c *RegistryCollector) Name() string { return "registry" }

// Run emits the current project list, then one update per registry change.
func (c *RegistryCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	publish := func(list []models.Project) {
		emit(ctx, updates, store.Update{
			Type:    store.UpdateProjects,
			Payload: list,
		})
	}

	list, err := c.registry.List()
	if err != nil {
		c.logger.WithError(err).Error("Failed to read project registry")
	} else {
		publish(list)
	}

	return c.registry.Watch(ctx, c.debounce, c.logger, publish)
}
