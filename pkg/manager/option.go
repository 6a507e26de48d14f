package manager

import (
	"time"

	"github.com/the-maldridge/arepo/pkg/detector"
	"github.com/the-maldridge/arepo/pkg/scheduler"
	"github.com/the-maldridge/arepo/pkg/storage"
	"github.com/the-maldridge/arepo/pkg/trigger"
)

// WithStorage persists the registry and the build queue.  The store
// is closed by Close.
func WithStorage(s storage.Storage) Option {
	return func(m *Manager) { m.store = s }
}

// WithLookup sets where upstream versions come from.
func WithLookup(l detector.Lookup) Option {
	return func(m *Manager) { m.lookup = l }
}

// WithRefresher sets how clones are synchronized.
func WithRefresher(r detector.SourceRefresher) Option {
	return func(m *Manager) { m.refresher = r }
}

// WithRecipes sets how recipes are read.
func WithRecipes(r Recipes) Option {
	return func(m *Manager) { m.recipes = r }
}

// WithBuilder sets the builder packages are handed to.
func WithBuilder(b scheduler.Builder) Option {
	return func(m *Manager) { m.builder = b }
}

// WithTriggers loads the named triggers.
func WithTriggers(names []string, o trigger.Options) Option {
	return func(m *Manager) {
		m.triggerNames = names
		m.triggerOpts = o
	}
}

// WithPackagers sets who packages are built as.
func WithPackagers(p scheduler.Packagers) Option {
	return func(m *Manager) { m.packagers = p }
}

// WithBumpRelease rebuilds identical versions with a bumped pkgrel.
func WithBumpRelease(b bool) Option {
	return func(m *Manager) { m.bumpRelease = b }
}

// WithConcurrency bounds builds and recipe loads within a level.
func WithConcurrency(n int) Option {
	return func(m *Manager) { m.concurrency = n }
}

// WithIgnoreList excludes bases from remote checks.
func WithIgnoreList(bases []string) Option {
	return func(m *Manager) { m.ignore = bases }
}

// WithVCSFreshness sets how long a live package build is trusted.
func WithVCSFreshness(d time.Duration) Option {
	return func(m *Manager) { m.freshness = d }
}

// WithForce ignores a lock held by another process.
func WithForce(force bool) Option {
	return func(m *Manager) { m.force = force }
}
