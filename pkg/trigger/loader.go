package trigger

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

// Load constructs the named triggers in the order given.  repo
// provides the package list for OnResult and may be nil.
func Load(l hclog.Logger, names []string, repo Repository, o Options) (*Loader, error) {
	ld := &Loader{l: l.Named("triggers"), repo: repo}
	for _, name := range names {
		t, err := construct(name, o)
		if err != nil {
			return nil, errors.Wrapf(err, "loading trigger %s", name)
		}
		ld.triggers = append(ld.triggers, loaded{name: name, t: t})
	}
	return ld, nil
}

// Names returns the loaded triggers in call order.
func (ld *Loader) Names() []string {
	out := make([]string, len(ld.triggers))
	for i, lt := range ld.triggers {
		out[i] = lt.name
	}
	return out
}

// OnStart notifies every trigger that a run is starting.
func (ld *Loader) OnStart(ctx context.Context) error {
	return ld.each(func(t Trigger) error { return t.OnStart(ctx) })
}

// Finalize hands the result and the current repository contents to
// every trigger.  A failing trigger does not stop the others; the
// first error is returned.
func (ld *Loader) Finalize(ctx context.Context, result *types.Result) error {
	var packages []types.Package
	if ld.repo != nil {
		packages = ld.repo.Packages()
	}
	return ld.each(func(t Trigger) error { return t.OnResult(ctx, result, packages) })
}

// OnStop notifies every trigger that the run is over.
func (ld *Loader) OnStop(ctx context.Context) error {
	return ld.each(func(t Trigger) error { return t.OnStop(ctx) })
}

func (ld *Loader) each(fn func(Trigger) error) error {
	var first error
	for _, lt := range ld.triggers {
		if err := fn(lt.t); err != nil {
			ld.l.Error("Trigger failed", "trigger", lt.name, "error", err)
			if first == nil {
				first = errors.Wrapf(err, "trigger %s", lt.name)
			}
		}
	}
	return first
}
