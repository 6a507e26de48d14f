package source

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

// WithSeed copies seed/<base> into a target directory named <base>
// before refreshing it, so that builds of locally tracked packages
// start from their cached clone.
func WithSeed(dir string) GitOption {
	return func(g *Git) { g.seed = dir }
}

// NewGit returns a refresher.
func NewGit(l hclog.Logger, opts ...GitOption) *Git {
	g := &Git{l: l.Named("refresh")}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Refresh either clones remote into dir or moves an existing clone to
// the head of the remote branch.  A checkout without any remotes, or
// a plain directory holding a PKGBUILD, is left alone.
func (g *Git) Refresh(ctx context.Context, dir string, remote *types.RemoteSource) error {
	if g.seed != "" {
		seeded := filepath.Join(g.seed, filepath.Base(dir))
		if st, err := os.Stat(seeded); err == nil && st.IsDir() && seeded != dir && !IsRepo(dir) {
			g.l.Debug("Seeding sources from cache", "from", seeded, "to", dir)
			if err := CopyTree(seeded, dir, nil); err != nil {
				return err
			}
		}
	}

	url, branch := "", ""
	if remote != nil {
		url, branch = remote.GitURL, remote.Branch
	}
	if !IsRepo(dir) && url == "" {
		if _, err := os.Stat(filepath.Join(dir, "PKGBUILD")); err == nil {
			g.l.Debug("Plain recipe directory, nothing to refresh", "path", dir)
			return nil
		}
		return errors.Errorf("%s is not initialized and no remote was provided", dir)
	}

	r := New(g.l, dir, url, branch)
	wasRepo := IsRepo(dir)
	if err := r.Bootstrap(ctx); err != nil {
		return err
	}
	if wasRepo {
		if !r.HasRemote() {
			g.l.Info("Skipping update, no remotes configured", "path", dir)
			return nil
		}
		if err := r.Fetch(ctx); err != nil {
			return err
		}
	}
	changed, err := r.Reset()
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		g.l.Info("Sources updated", "path", dir, "files", len(changed))
	}

	if remote != nil && remote.Path != "" && remote.Path != "." {
		return CopyTree(filepath.Join(dir, remote.Path), dir, nil)
	}
	return nil
}

// CopyTree copies the files below src into dst.  Entries for which
// skip returns true are not copied; a skipped directory is not
// descended into.
func CopyTree(src, dst string, skip func(rel string, d fs.DirEntry) bool) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && skip != nil && skip(rel, d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return copyFile(path, target)
		}
		return nil
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	st, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, st.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
