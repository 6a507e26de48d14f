package repo

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

// NewLookup combines the AUR and the sync databases.  Either may be
// nil.
func NewLookup(l hclog.Logger, aur *AUR, index *IndexService) *Lookup {
	return &Lookup{l: l.Named("lookup"), aur: aur, index: index}
}

// Lookup returns the upstream description of base.  Automatic lookups
// try the AUR first and fall back to the sync databases.
func (lk *Lookup) Lookup(ctx context.Context, base string, source types.PackageSource) (types.Package, error) {
	switch source {
	case types.SourceAUR:
		return lk.fromAUR(ctx, base)
	case types.SourceRepository:
		return lk.fromIndex(base)
	case types.SourceLocal, types.SourceArchive:
		return types.Package{}, errors.Wrapf(ErrNoUpstream, "%s (%s)", base, source)
	}

	p, err := lk.fromAUR(ctx, base)
	if err == nil {
		return p, nil
	}
	lk.l.Trace("Not in AUR, trying sync databases", "base", base, "error", err)
	return lk.fromIndex(base)
}

func (lk *Lookup) fromAUR(ctx context.Context, base string) (types.Package, error) {
	if lk.aur == nil {
		return types.Package{}, errors.Wrapf(ErrNoSuchPackage, "%s: aur lookups are disabled", base)
	}
	return lk.aur.Info(ctx, base)
}

func (lk *Lookup) fromIndex(base string) (types.Package, error) {
	if lk.index == nil {
		return types.Package{}, errors.Wrapf(ErrNoSuchPackage, "%s: no sync databases loaded", base)
	}
	return lk.index.Info(base)
}
