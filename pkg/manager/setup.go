package manager

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/arepo/pkg/config"
	"github.com/the-maldridge/arepo/pkg/repo"
	"github.com/the-maldridge/arepo/pkg/scheduler"
	"github.com/the-maldridge/arepo/pkg/source"
	"github.com/the-maldridge/arepo/pkg/storage"
	"github.com/the-maldridge/arepo/pkg/trigger"
	"github.com/the-maldridge/arepo/pkg/types"
)

// StatePath is where the registry of an architecture is stored.
func StatePath(root, arch, backend string) string {
	return filepath.Join(root, "state", arch+"."+backend)
}

// FromConfig builds a manager with the default collaborators: the
// AUR and the configured sync databases for lookups, git for sources,
// makepkg for recipes and the configured builder.  The storage
// factories, builders and triggers must have been registered through
// their DoCallbacks beforehand.
func FromConfig(ctx context.Context, l hclog.Logger, cfg *config.Config, arch string, force bool) (*Manager, error) {
	paths := types.NewRepositoryPaths(cfg.Root, arch)
	if err := paths.Tree(); err != nil {
		return nil, err
	}

	statePath := StatePath(cfg.Root, arch, cfg.Storage)
	if err := os.MkdirAll(filepath.Dir(statePath), 0755); err != nil {
		return nil, err
	}
	store, err := storage.Initialize(cfg.Storage, statePath)
	if err != nil {
		return nil, err
	}

	index := repo.NewIndexService(l)
	dbs := cfg.RepoDBURLs[arch]
	names := make([]string, 0, len(dbs))
	for name := range dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := index.LoadIndex(ctx, name, dbs[name]); err != nil {
			l.Warn("Could not load sync database", "arch", arch, "repo", name, "error", err)
		}
	}

	git := source.NewGit(l, source.WithSeed(paths.Cache()))
	recipes := source.NewRecipes(l,
		source.WithMakepkg(cfg.Makepkg),
		source.WithCache(paths.Cache()),
		source.WithArchitecture(arch),
		source.WithGit(git))

	builder, err := scheduler.ConstructBuilder(cfg.Builder, scheduler.BuilderOptions{
		Paths:    paths,
		Command:  cfg.BuildCommand,
		Sources:  git,
		NomadJob: cfg.NomadJob,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	m, err := New(l, paths,
		WithStorage(store),
		WithLookup(repo.NewLookup(l, repo.NewAUR(l, cfg.AURURL), index)),
		WithRefresher(git),
		WithRecipes(recipes),
		WithBuilder(builder),
		WithTriggers(cfg.Triggers, trigger.Options{
			Paths:     paths,
			GitRemote: trigger.GitRemote(cfg.GitRemote),
		}),
		WithPackagers(scheduler.Packagers{Default: cfg.DefaultPackager, ByBase: cfg.Packagers}),
		WithBumpRelease(cfg.BumpRelease),
		WithConcurrency(cfg.Concurrency),
		WithIgnoreList(cfg.IgnoreList),
		WithVCSFreshness(cfg.VCSFreshness.Duration),
		WithForce(force))
	if err != nil {
		store.Close()
		return nil, err
	}
	return m, nil
}

// Architectures returns the configured architectures, or the ones
// already present below root when none are configured.
func Architectures(cfg *config.Config) ([]string, error) {
	if len(cfg.Architectures) > 0 {
		return cfg.Architectures, nil
	}
	return types.KnownArchitectures(cfg.Root)
}
