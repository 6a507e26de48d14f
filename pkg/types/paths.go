package types

import (
	"os"
	"path/filepath"
	"sort"
)

// RepositoryPaths computes every on-disk location for one
// architecture of a repository.  Only the cache and chroot are shared
// between architectures.
type RepositoryPaths struct {
	Root         string
	Architecture string
}

// NewRepositoryPaths returns the paths for the given root and
// architecture.
func NewRepositoryPaths(root, arch string) RepositoryPaths {
	return RepositoryPaths{Root: root, Architecture: arch}
}

// Cache holds the clones of vcs and locally tracked packages.
func (rp RepositoryPaths) Cache() string { return filepath.Join(rp.Root, "cache") }

// Chroot is handed to the builder.
func (rp RepositoryPaths) Chroot() string { return filepath.Join(rp.Root, "chroot") }

// Packages holds freshly built artifacts before they are added to the
// repository.
func (rp RepositoryPaths) Packages() string {
	return filepath.Join(rp.Root, "packages", rp.Architecture)
}

// Repository is the published repository directory.
func (rp RepositoryPaths) Repository() string {
	return filepath.Join(rp.Root, "repository", rp.Architecture)
}

// Sources holds the per build recipe checkouts.
func (rp RepositoryPaths) Sources() string {
	return filepath.Join(rp.Root, "sources", rp.Architecture)
}

// CacheFor returns the clone directory for a package base.
func (rp RepositoryPaths) CacheFor(base string) string { return filepath.Join(rp.Cache(), base) }

// SourcesFor returns the build directory for a package base.
func (rp RepositoryPaths) SourcesFor(base string) string { return filepath.Join(rp.Sources(), base) }

// Tree creates every directory required to operate.
func (rp RepositoryPaths) Tree() error {
	for _, d := range []string{rp.Cache(), rp.Chroot(), rp.Packages(), rp.Repository(), rp.Sources()} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

// KnownArchitectures lists the architectures that already have a
// repository directory below root.
func KnownArchitectures(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, "repository"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var archs []string
	for _, e := range entries {
		if e.IsDir() {
			archs = append(archs, e.Name())
		}
	}
	sort.Strings(archs)
	return archs, nil
}
