package scheduler

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

// New returns a scheduler.  A builder must be supplied with
// WithBuilder before Run is called.
func New(opts ...Option) *Scheduler {
	x := Scheduler{
		l:            hclog.NewNullLogger(),
		status:       nopStatus{},
		concurrency:  1,
		runningMutex: new(sync.Mutex),
		running:      make(map[string]Running),
	}
	for _, o := range opts {
		o(&x)
	}
	return &x
}

// Run builds the levels in order.  Packages within a level are built
// concurrently, and the finalizer runs after every level with the
// result of that level.  When ctx is cancelled no further level is
// started and the result gathered so far is returned together with
// the context's error.
func (s *Scheduler) Run(ctx context.Context, levels [][]types.Package, packagers Packagers, bumpRelease bool) (*types.Result, error) {
	result := new(types.Result)
	if s.builder == nil {
		return result, errors.New("scheduler has no builder")
	}

	local := s.localVersions()
	for i, level := range levels {
		if err := ctx.Err(); err != nil {
			s.l.Warn("Stopping before level", "level", i, "error", err)
			return result, err
		}
		s.l.Info("Building level", "level", i, "packages", len(level))

		lr := s.runLevel(ctx, level, packagers, bumpRelease, local)
		result.Merge(lr)

		if s.finalizer != nil {
			if err := s.finalizer.Finalize(context.WithoutCancel(ctx), lr); err != nil {
				s.l.Warn("Finalize failed", "level", i, "error", err)
			}
		}
	}
	return result, ctx.Err()
}

func (s *Scheduler) runLevel(ctx context.Context, level []types.Package, packagers Packagers, bumpRelease bool, local map[string]string) *types.Result {
	lr := new(types.Result)
	resultMutex := new(sync.Mutex)

	buildCh := make(chan types.Package, len(level))
	wg := new(sync.WaitGroup)

	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for pkg := range buildCh {
				if ctx.Err() != nil {
					// Leave the package with whatever status it
					// had before.
					continue
				}
				b := Build{
					Package:      pkg,
					Packager:     packagers.For(pkg.Base),
					BumpRelease:  bumpRelease,
					LocalVersion: local[pkg.Base],
					Architecture: s.arch,
				}
				built, err := s.buildOne(ctx, id, b)

				resultMutex.Lock()
				if err != nil {
					lr.AddFailed(pkg.Base, err)
				} else {
					lr.AddSuccess(built)
				}
				resultMutex.Unlock()
			}
		}(i)
	}

	for _, pkg := range level {
		buildCh <- pkg
	}
	close(buildCh)
	wg.Wait()
	return lr
}

func (s *Scheduler) buildOne(ctx context.Context, worker int, b Build) (types.Package, error) {
	base := b.Package.Base
	s.report(s.status.SetBuilding(base))
	s.track(b)
	defer s.untrack(base)

	s.l.Debug("Building package", "base", base, "version", b.Package.Version, "worker", worker)
	artifacts, err := s.builder.Build(ctx, b)
	if err != nil {
		err = &BuildError{Base: base, Packager: b.Packager, Err: err}
		s.l.Error("Build failed", "base", base, "packager", b.Packager, "error", err)
		s.report(s.status.SetFailed(base))
		return types.Package{}, err
	}

	built := b.Package.Clone()
	built.Version = b.Version()
	attachArtifacts(&built, artifacts)
	s.report(s.status.SetSuccess(built))
	s.l.Info("Build succeeded", "base", base, "version", built.Version, "artifacts", len(artifacts))
	return built, nil
}

// attachArtifacts records the produced file names on the matching
// sub-packages.
func attachArtifacts(p *types.Package, artifacts []string) {
	names := p.Names()
	// longest name first so that foo-libs is not claimed by foo
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, a := range artifacts {
		file := filepath.Base(a)
		for _, name := range names {
			if strings.HasPrefix(file, name+"-") {
				desc := p.Packages[name]
				if desc.Filename == "" {
					desc.Filename = file
					p.Packages[name] = desc
				}
				break
			}
		}
	}
}

func (s *Scheduler) localVersions() map[string]string {
	out := make(map[string]string)
	if s.known == nil {
		return out
	}
	for _, p := range s.known.Packages() {
		out[p.Base] = p.Version
	}
	return out
}

func (s *Scheduler) track(b Build) {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()
	s.running[b.Package.Base] = Running{
		Base:     b.Package.Base,
		Version:  b.Version(),
		Packager: b.Packager,
		Started:  time.Now(),
	}
}

func (s *Scheduler) untrack(base string) {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()
	delete(s.running, base)
}

// InProgress lists the builds that are running right now.
func (s *Scheduler) InProgress() []Running {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()
	out := make([]Running, 0, len(s.running))
	for _, r := range s.running {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Base < out[j].Base })
	return out
}

func (s *Scheduler) report(err error) {
	if err != nil {
		s.l.Warn("Could not record status", "error", err)
	}
}

type nopStatus struct{}

func (nopStatus) SetBuilding(string) error       { return nil }
func (nopStatus) SetFailed(string) error         { return nil }
func (nopStatus) SetSuccess(types.Package) error { return nil }
