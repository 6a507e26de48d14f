package manager

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/arepo/pkg/detector"
	"github.com/the-maldridge/arepo/pkg/graph"
	"github.com/the-maldridge/arepo/pkg/lock"
	"github.com/the-maldridge/arepo/pkg/registry"
	"github.com/the-maldridge/arepo/pkg/scheduler"
	"github.com/the-maldridge/arepo/pkg/storage"
	"github.com/the-maldridge/arepo/pkg/trigger"
	"github.com/the-maldridge/arepo/pkg/types"
)

// Recipes reads build recipes.  source.Recipes is the default.
type Recipes interface {
	detector.VersionComputer
	detector.LocalLoader
	graph.RecipeFetcher
}

// UpdateOptions selects what an update run looks at.
type UpdateOptions struct {
	detector.Options

	// DryRun only reports the candidates.
	DryRun bool
}

// ArchResult is the outcome of one architecture in a fan-out.
type ArchResult struct {
	Arch string
	Err  error
}

// Manager drives every operation on one architecture of a
// repository.
type Manager struct {
	l     hclog.Logger
	paths types.RepositoryPaths

	store     storage.Storage
	registry  *registry.Registry
	queue     *registry.Queue
	lock      *lock.Lock
	detector  *detector.Detector
	scheduler *scheduler.Scheduler
	triggers  *trigger.Loader

	lookup    detector.Lookup
	refresher detector.SourceRefresher
	recipes   Recipes
	builder   scheduler.Builder

	triggerNames []string
	triggerOpts  trigger.Options

	packagers   scheduler.Packagers
	bumpRelease bool
	concurrency int
	ignore      []string
	freshness   time.Duration
	force       bool
}

// Option configures a Manager.
type Option func(*Manager)
