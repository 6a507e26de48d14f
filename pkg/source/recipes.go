package source

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

// WithMakepkg sets the command used to evaluate recipes.  An empty
// command disables evaluation and only .SRCINFO files are read.
func WithMakepkg(cmd string) RecipeOption {
	return func(r *Recipes) { r.makepkg = cmd }
}

// WithCache points at the directory holding the per base clones.
func WithCache(dir string) RecipeOption {
	return func(r *Recipes) { r.cache = dir }
}

// WithArchitecture selects the architecture specific recipe values.
func WithArchitecture(arch string) RecipeOption {
	return func(r *Recipes) { r.arch = arch }
}

// WithGit sets the refresher used to fetch recipes that are not
// cached.
func WithGit(g *Git) RecipeOption {
	return func(r *Recipes) { r.git = g }
}

// NewRecipes returns a recipe reader.
func NewRecipes(l hclog.Logger, opts ...RecipeOption) *Recipes {
	r := &Recipes{
		l:       l.Named("recipes"),
		arch:    "x86_64",
		makepkg: "makepkg",
	}
	for _, o := range opts {
		o(r)
	}
	if r.git == nil {
		r.git = NewGit(l)
	}
	return r
}

// LoadSource reads the package described by the recipe in dir.  The
// remote is taken from the origin of the checkout when it has one.
func (r *Recipes) LoadSource(dir string) (types.Package, error) {
	p, err := r.srcinfo(context.Background(), dir)
	if err != nil {
		return types.Package{}, err
	}
	p.Remote = &types.RemoteSource{Source: types.SourceLocal}
	if IsRepo(dir) {
		m := New(r.l, dir, "", "")
		if err := m.Bootstrap(context.Background()); err == nil {
			p.Remote.GitURL = m.RemoteURL()
			p.Remote.Branch = m.Branch
		}
	}
	return p, nil
}

// ActualVersion runs the recipe's source download so that live
// packages compute their real version, then reads it back.
func (r *Recipes) ActualVersion(ctx context.Context, dir string) (string, error) {
	if r.makepkg == "" {
		p, err := r.srcinfo(ctx, dir)
		if err != nil {
			return "", err
		}
		return p.Version, nil
	}
	if _, err := r.run(ctx, dir, "--nodeps", "--nobuild", "--skippgpcheck"); err != nil {
		return "", err
	}
	out, err := r.run(ctx, dir, "--printsrcinfo")
	if err != nil {
		return "", err
	}
	p, err := ParseSRCINFO(bytes.NewReader(out), r.arch)
	if err != nil {
		return "", err
	}
	return p.Version, nil
}

// Dependencies returns what has to be built before pkg.  The cached
// recipe is preferred; otherwise the remote is cloned into a scratch
// directory.  Packages without any recipe fall back to the metadata
// they were looked up with.
func (r *Recipes) Dependencies(ctx context.Context, pkg types.Package) ([]string, error) {
	if r.cache != "" {
		dir := filepath.Join(r.cache, pkg.Base)
		if _, err := os.Stat(filepath.Join(dir, "PKGBUILD")); err == nil {
			p, err := r.srcinfo(ctx, dir)
			if err != nil {
				return nil, err
			}
			return Dependencies(p), nil
		}
	}

	if pkg.Remote != nil && pkg.Remote.GitURL != "" {
		tmp, err := os.MkdirTemp("", "arepo-recipe-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(tmp)
		dir := filepath.Join(tmp, pkg.Base)
		if err := r.git.Refresh(ctx, dir, pkg.Remote); err != nil {
			return nil, errors.Wrapf(err, "fetching recipe for %s", pkg.Base)
		}
		p, err := r.srcinfo(ctx, dir)
		if err != nil {
			return nil, err
		}
		return Dependencies(p), nil
	}

	return Dependencies(pkg), nil
}

// srcinfo prefers a committed .SRCINFO and evaluates the PKGBUILD
// when there is none.
func (r *Recipes) srcinfo(ctx context.Context, dir string) (types.Package, error) {
	f, err := os.Open(filepath.Join(dir, ".SRCINFO"))
	if err == nil {
		defer f.Close()
		return ParseSRCINFO(f, r.arch)
	}
	if !os.IsNotExist(err) || r.makepkg == "" {
		return types.Package{}, err
	}
	out, err := r.run(ctx, dir, "--printsrcinfo")
	if err != nil {
		return types.Package{}, err
	}
	return ParseSRCINFO(bytes.NewReader(out), r.arch)
}

func (r *Recipes) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.makepkg, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	r.l.Trace("Running makepkg", "dir", dir, "args", args)
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrapf(err, "%s %v: %s", r.makepkg, args, bytes.TrimSpace(stderr.Bytes()))
	}
	return out, nil
}
