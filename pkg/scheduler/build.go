package scheduler

import (
	"github.com/the-maldridge/arepo/pkg/types"
)

// NextPkgrel returns the release an identical version has to be
// rebuilt with so that the new archive is distinguishable from the
// one in the repository.  It reports false when no bump is needed:
// the versions differ or the candidate is already newer.
func (b Build) NextPkgrel() (string, bool) {
	if !b.BumpRelease || b.LocalVersion == "" {
		return "", false
	}
	remote := types.ParseVersion(b.Package.Version)
	local := types.ParseVersion(b.LocalVersion)
	if remote.Epoch != local.Epoch || remote.Pkgver != local.Pkgver {
		return "", false
	}
	if types.VerCmp(b.Package.Version, b.LocalVersion) > 0 {
		return "", false
	}
	return types.NextRelease(local.Pkgrel), true
}

// Version is the version the package will have once built.
func (b Build) Version() string {
	pkgrel, ok := b.NextPkgrel()
	if !ok {
		return b.Package.Version
	}
	v := types.ParseVersion(b.Package.Version)
	v.Pkgrel = pkgrel
	return v.String()
}

// For returns the packager responsible for a base.
func (p Packagers) For(base string) string {
	if who, ok := p.ByBase[base]; ok && who != "" {
		return who
	}
	return p.Default
}
