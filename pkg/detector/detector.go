package detector

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

// New returns a detector for one architecture of a repository.  Lanes
// whose collaborators are not configured produce no candidates.
func New(l hclog.Logger, paths types.RepositoryPaths, opts ...Option) *Detector {
	d := &Detector{
		l:         l.Named("detector"),
		paths:     paths,
		status:    nopStatus{},
		ignore:    make(map[string]struct{}),
		freshness: 24 * time.Hour,
		now:       time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Updates runs every enabled lane and returns the candidates sorted
// by base.  A base found by several lanes is reported once, with the
// description from the last lane that found it.
func (d *Detector) Updates(ctx context.Context, opts Options) []types.Package {
	var found []types.Package
	if !opts.NoRemote {
		found = append(found, d.UpdatesRemote(ctx, opts.Filter, opts.NoVCS)...)
	}
	if !opts.NoLocal {
		found = append(found, d.UpdatesLocal(ctx)...)
	}
	if !opts.NoManual {
		found = append(found, d.UpdatesManual(ctx, opts.Filter, opts.KeepQueue)...)
	}

	filter := toSet(opts.Filter)
	byBase := make(map[string]types.Package, len(found))
	for _, p := range found {
		if len(filter) > 0 {
			if _, ok := filter[p.Base]; !ok {
				continue
			}
		}
		byBase[p.Base] = p
	}

	out := make([]types.Package, 0, len(byBase))
	for _, p := range byBase {
		out = append(out, p)
	}
	types.SortPackages(out)
	d.l.Info("Updates computed", "count", len(out))
	return out
}

// UpdatesRemote checks every known package against its upstream.
func (d *Detector) UpdatesRemote(ctx context.Context, filter []string, noVCS bool) []types.Package {
	if d.lookup == nil || d.known == nil {
		d.l.Debug("Remote lane is not configured")
		return nil
	}

	only := toSet(filter)
	var out []types.Package
	for _, local := range d.known.Packages() {
		if ctx.Err() != nil {
			break
		}
		if _, ignored := d.ignore[local.Base]; ignored {
			continue
		}
		if len(only) > 0 {
			if _, ok := only[local.Base]; !ok {
				continue
			}
		}
		if noVCS && local.IsVCS() {
			continue
		}
		if !hasUpstream(local) {
			continue
		}

		remote, outdated, err := d.checkRemote(ctx, local)
		if err != nil {
			d.l.Warn("Could not check package", "base", local.Base, "error", err)
			d.report(d.status.SetFailed(local.Base))
			continue
		}
		if outdated {
			d.l.Debug("Package is outdated", "base", local.Base, "local", local.Version, "remote", remote.Version)
			d.report(d.status.SetPending(local.Base))
			out = append(out, remote)
			continue
		}
		d.report(d.status.SetSuccess(local))
	}
	return out
}

func (d *Detector) checkRemote(ctx context.Context, local types.Package) (types.Package, bool, error) {
	source := types.SourceAuto
	if local.Remote != nil {
		source = local.Remote.Source
	}
	remote, err := d.lookup.Lookup(ctx, local.Base, source)
	if err != nil {
		return types.Package{}, false, errors.Wrapf(ErrRemoteLookup, "%s: %v", local.Base, err)
	}
	if remote.Remote == nil {
		remote.Remote = local.Remote
	}

	actual := remote.Version
	if local.IsVCS() && !d.builtRecently(local) {
		actual, err = d.actualVersion(ctx, local.Base, remote.Remote)
		if err != nil {
			return types.Package{}, false, err
		}
		remote.Version = actual
	}
	return remote, local.IsOutdated(actual), nil
}

// hasUpstream is false for packages that are only tracked on disk.
// Those are checked by the local lane.
func hasUpstream(p types.Package) bool {
	if p.Remote == nil {
		return true
	}
	return p.Remote.Source != types.SourceLocal && p.Remote.Source != types.SourceArchive
}

// builtRecently is true when the package was built inside the
// freshness window, in which case its stored version is trusted.
func (d *Detector) builtRecently(p types.Package) bool {
	built := p.BuildDate()
	if built == 0 {
		return false
	}
	return built > d.now().Add(-d.freshness).Unix()
}

func (d *Detector) actualVersion(ctx context.Context, base string, remote *types.RemoteSource) (string, error) {
	if d.refresher == nil || d.versions == nil {
		return "", errors.Wrapf(ErrSourceRefresh, "%s: no source collaborators", base)
	}
	dir := d.paths.CacheFor(base)
	if err := d.refresher.Refresh(ctx, dir, remote); err != nil {
		return "", errors.Wrapf(ErrSourceRefresh, "%s: %v", base, err)
	}
	v, err := d.versions.ActualVersion(ctx, dir)
	if err != nil {
		return "", errors.Wrapf(ErrSourceRefresh, "%s: %v", base, err)
	}
	return v, nil
}

// UpdatesLocal checks the packages tracked in the cache directory.  A
// directory that does not belong to any known package is a new
// package and always a candidate.
func (d *Detector) UpdatesLocal(ctx context.Context) []types.Package {
	if d.loader == nil || d.refresher == nil {
		d.l.Debug("Local lane is not configured")
		return nil
	}

	entries, err := os.ReadDir(d.paths.Cache())
	if err != nil {
		if !os.IsNotExist(err) {
			d.l.Warn("Could not list cache", "error", err)
		}
		return nil
	}

	known := make(map[string]types.Package)
	if d.known != nil {
		for _, p := range d.known.Packages() {
			known[p.Base] = p
		}
	}

	var out []types.Package
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		if !e.IsDir() {
			continue
		}
		base := e.Name()
		dir := filepath.Join(d.paths.Cache(), base)
		local, isKnown := known[base]

		var remote *types.RemoteSource
		if isKnown {
			remote = local.Remote
		}
		if err := d.refresher.Refresh(ctx, dir, remote); err != nil {
			d.l.Warn("Could not refresh source", "base", base, "error", errors.Wrap(ErrSourceRefresh, err.Error()))
			if isKnown {
				d.report(d.status.SetFailed(base))
			}
			continue
		}
		pkg, err := d.loader.LoadSource(dir)
		if err != nil {
			d.l.Warn("Could not load recipe", "base", base, "error", err)
			if isKnown {
				d.report(d.status.SetFailed(base))
			}
			continue
		}
		if pkg.Remote == nil {
			pkg.Remote = remote
		}

		switch {
		case !isKnown:
			d.report(d.status.SetUnknown(pkg))
			out = append(out, pkg)
		case local.IsOutdated(pkg.Version):
			d.report(d.status.SetPending(base))
			out = append(out, pkg)
		default:
			d.report(d.status.SetSuccess(local))
		}
	}
	return out
}

// UpdatesManual drains the build queue.  Every queued package that
// passes the filter is a candidate and is removed from the queue
// unless keep is set.
func (d *Detector) UpdatesManual(ctx context.Context, filter []string, keep bool) []types.Package {
	if d.queue == nil {
		return nil
	}

	queued, err := d.queue.List()
	if err != nil {
		d.l.Warn("Could not read build queue", "error", err)
		return []types.Package{}
	}

	known := make(map[string]struct{})
	if d.known != nil {
		for _, p := range d.known.Packages() {
			known[p.Base] = struct{}{}
		}
	}

	only := toSet(filter)
	out := make([]types.Package, 0, len(queued))
	for _, p := range queued {
		if len(only) > 0 {
			if _, ok := only[p.Base]; !ok {
				continue
			}
		}
		if _, ok := known[p.Base]; ok {
			d.report(d.status.SetPending(p.Base))
		} else {
			d.report(d.status.SetUnknown(p))
		}
		out = append(out, p)
	}

	if keep {
		return out
	}
	for _, p := range out {
		if err := d.queue.Remove(p.Base); err != nil {
			d.l.Warn("Could not remove queue entry", "base", p.Base, "error", err)
		}
	}
	return out
}

func (d *Detector) report(err error) {
	if err != nil {
		d.l.Warn("Could not record status", "error", err)
	}
}

func toSet(s []string) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for _, x := range s {
		out[x] = struct{}{}
	}
	return out
}

// Bases returns the sorted bases of a candidate list.
func Bases(pkgs []types.Package) []string {
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.Base
	}
	sort.Strings(out)
	return out
}

type nopStatus struct{}

func (nopStatus) SetPending(string) error        { return nil }
func (nopStatus) SetFailed(string) error         { return nil }
func (nopStatus) SetSuccess(types.Package) error { return nil }
func (nopStatus) SetUnknown(types.Package) error { return nil }
