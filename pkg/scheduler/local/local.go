package local

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/scheduler"
)

func init() {
	scheduler.RegisterInitCallback(cb)
}

func cb() {
	scheduler.RegisterBuilderFactory("local", New)
}

// DefaultCommand builds in a clean chroot with the devtools wrapper
// for the architecture.
var DefaultCommand = []string{"extra-{arch}-build", "-r", "{chroot}", "--", "--", "--skippgpcheck"}

var pkgrelRe = regexp.MustCompile(`(?m)^pkgrel=.*$`)

// New returns a local builder that builds one package per call in the
// package's sources directory.
func New(l hclog.Logger, o scheduler.BuilderOptions) (scheduler.Builder, error) {
	x := Local{
		l:       l.Named("local"),
		paths:   o.Paths,
		command: o.Command,
		sources: o.Sources,
	}
	if len(x.command) == 0 {
		x.command = DefaultCommand
	}
	return &x, nil
}

// Build prepares the sources directory, runs the build command in it
// and moves the produced archives into the packages directory.
func (c *Local) Build(ctx context.Context, b scheduler.Build) ([]string, error) {
	dir := c.paths.SourcesFor(b.Package.Base)
	if c.sources != nil {
		if err := c.sources.Refresh(ctx, dir, b.Package.Remote); err != nil {
			return nil, errors.Wrap(err, "fetching sources")
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	if pkgrel, ok := b.NextPkgrel(); ok {
		c.l.Info("Bumping release", "base", b.Package.Base, "pkgrel", pkgrel)
		if err := bumpPkgrel(filepath.Join(dir, "PKGBUILD"), pkgrel); err != nil {
			return nil, err
		}
	}

	args := c.expand(b)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "PACKAGER="+b.Packager)

	c.l.Debug("Running build", "base", b.Package.Base, "command", strings.Join(args, " "))
	output, err := cmd.CombinedOutput()
	c.l.Trace("Build output", "base", b.Package.Base, "output", string(output))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: %s", args[0], lastLines(output, 5))
	}

	return c.collect(dir)
}

func (c *Local) expand(b scheduler.Build) []string {
	r := strings.NewReplacer(
		"{arch}", b.Architecture,
		"{chroot}", c.paths.Chroot(),
		"{packager}", b.Packager,
	)
	out := make([]string, len(c.command))
	for i, a := range c.command {
		out[i] = r.Replace(a)
	}
	return out
}

// collect moves every archive built in dir to the packages directory.
// Detached signatures are left alone.
func (c *Local) collect(dir string) ([]string, error) {
	found, err := filepath.Glob(filepath.Join(dir, "*.pkg.tar.*"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.paths.Packages(), 0755); err != nil {
		return nil, err
	}

	var out []string
	for _, f := range found {
		if strings.HasSuffix(f, ".sig") {
			continue
		}
		dst := filepath.Join(c.paths.Packages(), filepath.Base(f))
		if err := os.Rename(f, dst); err != nil {
			return nil, errors.Wrapf(err, "moving %s", filepath.Base(f))
		}
		out = append(out, dst)
	}
	if len(out) == 0 {
		return nil, errors.New("build produced no archives")
	}
	return out, nil
}

func bumpPkgrel(pkgbuild, pkgrel string) error {
	raw, err := os.ReadFile(pkgbuild)
	if err != nil {
		return err
	}
	if !pkgrelRe.Match(raw) {
		return errors.Errorf("%s has no pkgrel", pkgbuild)
	}
	raw = pkgrelRe.ReplaceAll(raw, []byte("pkgrel="+pkgrel))
	return os.WriteFile(pkgbuild, raw, 0644)
}

func lastLines(b []byte, n int) string {
	lines := bytes.Split(bytes.TrimSpace(b), []byte("\n"))
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return string(bytes.Join(lines, []byte(" | ")))
}
