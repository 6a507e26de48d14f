package manager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/detector"
	"github.com/the-maldridge/arepo/pkg/graph"
	"github.com/the-maldridge/arepo/pkg/lock"
	"github.com/the-maldridge/arepo/pkg/registry"
	"github.com/the-maldridge/arepo/pkg/scheduler"
	"github.com/the-maldridge/arepo/pkg/source"
	"github.com/the-maldridge/arepo/pkg/storage"
	"github.com/the-maldridge/arepo/pkg/trigger"
	"github.com/the-maldridge/arepo/pkg/types"
)

// New wires up the registry, the lock, the detector, the scheduler
// and the triggers for one architecture.
func New(l hclog.Logger, paths types.RepositoryPaths, opts ...Option) (*Manager, error) {
	m := &Manager{
		l:           l.Named("manager").With("arch", paths.Architecture),
		paths:       paths,
		concurrency: 1,
		freshness:   24 * time.Hour,
	}
	for _, o := range opts {
		o(m)
	}
	if m.store == nil {
		m.store = storage.NewMemory()
	}

	var err error
	m.registry, err = registry.New(registry.WithLogger(l), registry.WithStorage(m.store))
	if err != nil {
		return nil, err
	}
	m.queue = registry.NewQueue(l, m.store)
	m.lock = lock.New(l, paths.Root, paths.Architecture,
		lock.WithForce(m.force),
		lock.WithSelfStatus(m.registry))

	m.triggers, err = trigger.Load(l, m.triggerNames, m.registry, m.triggerOpts)
	if err != nil {
		return nil, err
	}

	m.detector = detector.New(l, paths,
		detector.WithKnown(m.registry),
		detector.WithStatus(m.registry),
		detector.WithQueue(m.queue),
		detector.WithLookup(m.lookup),
		detector.WithRefresher(m.refresher),
		detector.WithVersionComputer(m.recipes),
		detector.WithLocalLoader(m.recipes),
		detector.WithIgnoreList(m.ignore),
		detector.WithVCSFreshness(m.freshness))

	m.scheduler = scheduler.New(
		scheduler.WithLogger(l),
		scheduler.WithBuilder(m.builder),
		scheduler.WithStatus(m.registry),
		scheduler.WithKnown(m.registry),
		scheduler.WithFinalizer(m),
		scheduler.WithConcurrency(m.concurrency),
		scheduler.WithArchitecture(paths.Architecture))
	return m, nil
}

// Registry exposes the status registry of this architecture.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// Scheduler exposes the scheduler, mostly for its HTTP entry.
func (m *Manager) Scheduler() *scheduler.Scheduler { return m.scheduler }

// Paths returns the directories this manager works in.
func (m *Manager) Paths() types.RepositoryPaths { return m.paths }

// Close releases the storage.
func (m *Manager) Close() error {
	return m.store.Close()
}

// Update finds outdated packages, orders them and builds them, all
// while holding the lock of this architecture.  The returned result
// is empty when there was nothing to do.
func (m *Manager) Update(ctx context.Context, o UpdateOptions) (*types.Result, error) {
	result := new(types.Result)
	err := m.lock.Run(ctx, func(ctx context.Context) error {
		m.warn(m.triggers.OnStart(ctx), "Trigger start failed")
		defer func() { m.warn(m.triggers.OnStop(context.WithoutCancel(ctx)), "Trigger stop failed") }()

		opts := o.Options
		opts.KeepQueue = opts.KeepQueue || o.DryRun
		candidates := m.detector.Updates(ctx, opts)
		if len(candidates) == 0 {
			m.l.Info("Nothing to do")
			return ctx.Err()
		}
		if o.DryRun {
			for _, p := range candidates {
				m.l.Info("Would build", "base", p.Base, "version", p.Version)
			}
			return nil
		}

		levels, failed, err := m.order(ctx, candidates)
		if err != nil {
			return err
		}
		for _, f := range failed.Failed() {
			m.warn(m.registry.SetFailed(f.Base), "Could not record status")
		}
		result.Merge(failed)

		built, err := m.scheduler.Run(ctx, levels, m.packagers, m.bumpRelease)
		result.Merge(built)
		return err
	})
	return result, err
}

// Plan returns the packages an update would build without building
// anything.
func (m *Manager) Plan(ctx context.Context, o detector.Options) ([]types.Package, error) {
	var candidates []types.Package
	o.KeepQueue = true
	err := m.lock.Run(ctx, func(ctx context.Context) error {
		candidates = m.detector.Updates(ctx, o)
		return ctx.Err()
	})
	return candidates, err
}

// order resolves the build levels.  Packages whose recipes could not
// be read are returned as failures, a cycle aborts the run.
func (m *Manager) order(ctx context.Context, candidates []types.Package) ([][]types.Package, *types.Result, error) {
	failed := new(types.Result)

	var fetcher graph.RecipeFetcher = metadataFetcher{}
	if m.recipes != nil {
		fetcher = m.recipes
	}
	tree, err := graph.Load(ctx, m.l, candidates, fetcher, m.concurrency)
	var loadErr *graph.LoadError
	switch {
	case errors.As(err, &loadErr):
		for base, e := range loadErr.Failed {
			failed.AddFailed(base, e)
		}
	case err != nil:
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	levels, err := tree.Levels()
	if err != nil {
		return nil, nil, err
	}
	m.l.Debug("Build order resolved", "levels", len(levels))
	return levels, failed, nil
}

// Finalize publishes the archives of a level and runs the triggers.
func (m *Manager) Finalize(ctx context.Context, result *types.Result) error {
	for _, p := range result.Success() {
		if err := m.publish(p); err != nil {
			m.l.Error("Could not publish package", "base", p.Base, "error", err)
		}
	}
	return m.triggers.Finalize(ctx, result)
}

// publish moves freshly built archives into the repository, replacing
// older archives of the same packages.
func (m *Manager) publish(p types.Package) error {
	repoDir := m.paths.Repository()
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		return err
	}
	for name, desc := range p.Packages {
		if desc.Filename == "" {
			continue
		}
		built := filepath.Join(m.paths.Packages(), desc.Filename)
		if _, err := os.Stat(built); err != nil {
			m.l.Debug("Archive is not in the packages directory", "file", desc.Filename)
			continue
		}
		if err := m.dropArchives(name, desc.Filename); err != nil {
			return err
		}
		for _, suffix := range []string{"", ".sig"} {
			err := os.Rename(built+suffix, filepath.Join(repoDir, desc.Filename+suffix))
			if err != nil && !(suffix != "" && os.IsNotExist(err)) {
				return err
			}
		}
	}
	return nil
}

// dropArchives removes every archive of package name from the
// repository directory except keep.
func (m *Manager) dropArchives(name, keep string) error {
	entries, err := os.ReadDir(m.paths.Repository())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		file := strings.TrimSuffix(e.Name(), ".sig")
		if file == keep || ArchiveName(file) != name {
			continue
		}
		m.l.Debug("Removing archive", "file", e.Name())
		if err := os.Remove(filepath.Join(m.paths.Repository(), e.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// ArchiveName returns the package name of an archive file name such
// as foo-libs-1.0-1-x86_64.pkg.tar.zst, or "" if it is not one.
func ArchiveName(file string) string {
	i := strings.Index(file, ".pkg.tar")
	if i < 0 {
		return ""
	}
	parts := strings.Split(file[:i], "-")
	if len(parts) < 4 {
		return ""
	}
	return strings.Join(parts[:len(parts)-3], "-")
}

// Remove drops packages from the registry, the build queue and the
// repository and then runs the triggers.  Unknown bases are skipped.
func (m *Manager) Remove(ctx context.Context, bases []string) (*types.Result, error) {
	result := new(types.Result)
	err := m.lock.Run(ctx, func(ctx context.Context) error {
		for _, base := range bases {
			e, err := m.registry.Get(base)
			if errors.Is(err, registry.ErrUnknownPackage) {
				m.l.Warn("Package is not in the repository", "base", base)
				continue
			}
			if err != nil {
				return err
			}
			for name, desc := range e.Package.Packages {
				if err := m.dropArchives(name, ""); err != nil {
					return err
				}
				if desc.Filename == "" {
					continue
				}
				built := filepath.Join(m.paths.Packages(), desc.Filename)
				if err := os.Remove(built); err != nil && !os.IsNotExist(err) {
					return errors.Wrapf(err, "removing %s", built)
				}
			}
			if err := m.registry.Remove(base); err != nil {
				return err
			}
			m.warn(m.queue.Remove(base), "Could not clear queue entry")
			result.AddRemoved(base)
			m.l.Info("Removed package", "base", base)
		}
		if result.IsEmpty() {
			return nil
		}
		return m.triggers.Finalize(ctx, result)
	})
	return result, err
}

// Add queues a package for the next update.  Local packages are given
// as a recipe directory which is copied into the cache.
func (m *Manager) Add(ctx context.Context, name string, src types.PackageSource) (types.Package, error) {
	if src == types.SourceAuto {
		if st, err := os.Stat(name); err == nil && st.IsDir() {
			src = types.SourceLocal
		}
	}

	var p types.Package
	var err error
	switch src {
	case types.SourceLocal:
		if m.recipes == nil {
			return p, errors.New("no recipe reader configured")
		}
		p, err = m.recipes.LoadSource(name)
		if err != nil {
			return p, err
		}
		if err := source.CopyTree(name, m.paths.CacheFor(p.Base), nil); err != nil {
			return p, err
		}
	default:
		if m.lookup == nil {
			return p, errors.New("no lookup configured")
		}
		p, err = m.lookup.Lookup(ctx, name, src)
		if err != nil {
			return p, errors.Wrap(detector.ErrRemoteLookup, err.Error())
		}
	}

	if err := m.queue.Push(p); err != nil {
		return p, err
	}
	m.l.Info("Queued package", "base", p.Base, "version", p.Version, "source", src)
	return p, nil
}

func (m *Manager) warn(err error, msg string) {
	if err != nil {
		m.l.Warn(msg, "error", err)
	}
}

// metadataFetcher reads dependencies from the package descriptions
// alone.
type metadataFetcher struct{}

func (metadataFetcher) Dependencies(_ context.Context, p types.Package) ([]string, error) {
	return source.Dependencies(p), nil
}
