package nomad

import (
	"context"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/nomad/api"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/scheduler"
	"github.com/the-maldridge/arepo/pkg/types"
)

// DefaultJob is the parameterized job builds are dispatched to when
// none is configured.
const DefaultJob = "arepo-build"

type nomadProvider struct {
	l hclog.Logger
	c *api.Client

	job   string
	paths types.RepositoryPaths
	poll  time.Duration
}

func init() {
	scheduler.RegisterInitCallback(cb)
}

func cb() {
	scheduler.RegisterBuilderFactory("nomad", New)
}

// New returns a wrapper around a nomad client that implements the
// scheduler's Builder interface.  The client is configured from the
// usual NOMAD_* environment variables.
func New(l hclog.Logger, o scheduler.BuilderOptions) (scheduler.Builder, error) {
	return NewWithConfig(l, o, api.DefaultConfig())
}

// NewWithConfig is New with an explicit client configuration.
func NewWithConfig(l hclog.Logger, o scheduler.BuilderOptions, cfg *api.Config) (scheduler.Builder, error) {
	c, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	x := &nomadProvider{
		l:     l.Named("nomad"),
		c:     c,
		job:   o.NomadJob,
		paths: o.Paths,
		poll:  5 * time.Second,
	}
	if x.job == "" {
		x.job = DefaultJob
	}
	return x, nil
}

// Build dispatches the job and waits for all of its allocations to
// finish.  The job is expected to drop the archives into the shared
// packages directory.
func (n *nomadProvider) Build(ctx context.Context, b scheduler.Build) ([]string, error) {
	meta := map[string]string{
		"base":     b.Package.Base,
		"version":  b.Version(),
		"arch":     b.Architecture,
		"packager": b.Packager,
	}
	if b.Package.Remote != nil {
		meta["git_url"] = b.Package.Remote.GitURL
		meta["path"] = b.Package.Remote.Path
	}
	if pkgrel, ok := b.NextPkgrel(); ok {
		meta["pkgrel"] = pkgrel
	}

	wopts := (&api.WriteOptions{}).WithContext(ctx)
	res, _, err := n.c.Jobs().Dispatch(n.job, meta, nil, wopts)
	if err != nil {
		n.l.Warn("Nomad error", "error", err)
		return nil, err
	}
	n.l.Debug("Dispatched job", "base", b.Package.Base, "eval", res.EvalID, "jid", res.DispatchedJobID)

	if err := n.wait(ctx, res.DispatchedJobID); err != nil {
		return nil, err
	}
	return n.artifacts(b)
}

func (n *nomadProvider) wait(ctx context.Context, jid string) error {
	ticker := time.NewTicker(n.poll)
	defer ticker.Stop()

	for {
		qopts := (&api.QueryOptions{}).WithContext(ctx)
		summary, _, err := n.c.Jobs().Summary(jid, qopts)
		if err != nil {
			return errors.Wrapf(err, "summary of %s", jid)
		}

		var active, failed, complete int
		for _, tg := range summary.Summary {
			active += tg.Queued + tg.Starting + tg.Running
			failed += tg.Failed + tg.Lost
			complete += tg.Complete
		}
		n.l.Trace("Polled job", "jid", jid, "active", active, "failed", failed, "complete", complete)

		switch {
		case active == 0 && failed > 0:
			return errors.Errorf("job %s failed", jid)
		case active == 0 && complete > 0:
			return nil
		}

		select {
		case <-ctx.Done():
			if _, _, err := n.c.Jobs().Deregister(jid, false, nil); err != nil {
				n.l.Warn("Could not stop job", "jid", jid, "error", err)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (n *nomadProvider) artifacts(b scheduler.Build) ([]string, error) {
	var out []string
	for _, name := range b.Package.Names() {
		found, err := filepath.Glob(filepath.Join(n.paths.Packages(), name+"-"+b.Version()+"-*.pkg.tar.*"))
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if filepath.Ext(f) != ".sig" {
				out = append(out, f)
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.New("job finished without archives")
	}
	return out, nil
}
