// Package gitremote publishes the recipes of the repository to a git
// remote after every build.
package gitremote

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/source"
	"github.com/the-maldridge/arepo/pkg/trigger"
	"github.com/the-maldridge/arepo/pkg/types"
)

const (
	defaultUser  = "arepo"
	defaultEmail = "arepo@localhost"
)

type gitRemote struct {
	l     hclog.Logger
	paths types.RepositoryPaths
	conf  trigger.GitRemote

	now func() time.Time
}

func init() {
	trigger.RegisterCallback(cb)
}

func cb() {
	trigger.Register("gitremote", New)
}

// New returns the trigger.  A push url is required.
func New(l hclog.Logger, o trigger.Options) (trigger.Trigger, error) {
	if o.GitRemote.URL == "" {
		return nil, errors.New("gitremote: no push url configured")
	}
	g := &gitRemote{
		l:     l.Named("gitremote"),
		paths: o.Paths,
		conf:  o.GitRemote,
		now:   time.Now,
	}
	if g.conf.CommitUser == "" {
		g.conf.CommitUser = defaultUser
	}
	if g.conf.CommitEmail == "" {
		g.conf.CommitEmail = defaultEmail
	}
	return g, nil
}

func (g *gitRemote) OnStart(context.Context) error { return nil }
func (g *gitRemote) OnStop(context.Context) error  { return nil }

// OnResult clones the remote, replaces the directories of every built
// package with its current recipe, drops the directories of removed
// packages and pushes the result.
func (g *gitRemote) OnResult(ctx context.Context, result *types.Result, _ []types.Package) error {
	built := result.Success()
	removed := result.Removed()
	if len(built) == 0 && len(removed) == 0 {
		return nil
	}

	tmp, err := os.MkdirTemp("", "arepo-gitremote-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	r := source.New(g.l, filepath.Join(tmp, "remote"), g.conf.URL, g.conf.Branch)
	if err := r.Bootstrap(ctx); err != nil {
		return errors.Wrap(err, "cloning push remote")
	}

	for _, p := range built {
		if err := g.update(r.Path, p.Base); err != nil {
			g.l.Warn("Could not update recipe", "base", p.Base, "error", err)
		}
	}
	for _, base := range removed {
		if err := os.RemoveAll(filepath.Join(r.Path, base)); err != nil {
			return err
		}
	}

	msg := fmt.Sprintf("Autogenerated commit at %s", g.now().UTC().Format(time.RFC3339))
	committed, err := r.CommitAll(msg, g.conf.CommitUser, g.conf.CommitEmail)
	if err != nil {
		return err
	}
	if !committed {
		g.l.Debug("Nothing to push")
		return nil
	}
	if err := r.Push(ctx); err != nil {
		return errors.Wrap(err, "pushing")
	}
	g.l.Info("Pushed recipes", "built", len(built), "removed", len(removed))
	return nil
}

// update replaces worktree/base with the recipe the package was built
// from.
func (g *gitRemote) update(worktree, base string) error {
	from := g.paths.SourcesFor(base)
	if _, err := os.Stat(from); err != nil {
		from = g.paths.CacheFor(base)
	}
	if _, err := os.Stat(from); err != nil {
		return errors.Errorf("no recipe directory for %s", base)
	}

	target := filepath.Join(worktree, base)
	if err := os.RemoveAll(target); err != nil {
		return err
	}
	return source.CopyTree(from, target, skipArtifacts)
}

// skipArtifacts leaves out everything that is produced by a build
// rather than being part of the recipe.
func skipArtifacts(rel string, d fs.DirEntry) bool {
	switch rel {
	case ".git", "src", "pkg":
		return d.IsDir()
	}
	name := d.Name()
	return strings.Contains(name, ".pkg.tar") || strings.HasSuffix(name, ".log")
}
