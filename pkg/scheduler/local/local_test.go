package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-maldridge/arepo/pkg/scheduler"
	"github.com/the-maldridge/arepo/pkg/types"
)

type fakeSources struct {
	refreshed []string
}

func (f *fakeSources) Refresh(_ context.Context, dir string, _ *types.RemoteSource) error {
	f.refreshed = append(f.refreshed, dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "PKGBUILD"), []byte("pkgname=foo\npkgver=1.0\npkgrel=1\n"), 0644)
}

func newBuilder(t *testing.T, command []string) (*Local, types.RepositoryPaths, *fakeSources) {
	paths := types.NewRepositoryPaths(t.TempDir(), "x86_64")
	src := &fakeSources{}
	b, err := New(hclog.NewNullLogger(), scheduler.BuilderOptions{
		Paths:   paths,
		Command: command,
		Sources: src,
	})
	require.NoError(t, err)
	return b.(*Local), paths, src
}

func build(version string) scheduler.Build {
	return scheduler.Build{
		Package: types.Package{
			Base:     "foo",
			Version:  version,
			Packages: map[string]types.PackageDescription{"foo": {}},
		},
		Packager:     "Bot <bot@example.com>",
		Architecture: "x86_64",
	}
}

func TestBuildCollectsArchives(t *testing.T) {
	l, paths, src := newBuilder(t, []string{"sh", "-c",
		`test "$PACKAGER" = "{packager}" && touch foo-1.0-1-{arch}.pkg.tar.zst foo-1.0-1-{arch}.pkg.tar.zst.sig`})

	out, err := l.Build(context.Background(), build("1.0-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(paths.Packages(), "foo-1.0-1-x86_64.pkg.tar.zst")}, out)
	assert.Equal(t, []string{paths.SourcesFor("foo")}, src.refreshed)

	_, err = os.Stat(out[0])
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(paths.SourcesFor("foo"), "foo-1.0-1-x86_64.pkg.tar.zst.sig"))
	assert.NoError(t, err)
}

func TestBuildBumpsRelease(t *testing.T) {
	l, paths, _ := newBuilder(t, []string{"sh", "-c", `grep -q '^pkgrel=1.1$' PKGBUILD && touch foo-1.0-1.1-any.pkg.tar.xz`})

	b := build("1.0-1")
	b.BumpRelease = true
	b.LocalVersion = "1.0-1"
	out, err := l.Build(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(paths.Packages(), "foo-1.0-1.1-any.pkg.tar.xz")}, out)
}

func TestBuildFailure(t *testing.T) {
	l, _, _ := newBuilder(t, []string{"sh", "-c", "echo missing dependency; exit 3"})

	_, err := l.Build(context.Background(), build("1.0-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing dependency")
}

func TestBuildWithoutArchives(t *testing.T) {
	l, _, _ := newBuilder(t, []string{"true"})

	_, err := l.Build(context.Background(), build("1.0-1"))
	assert.Error(t, err)
}

func TestDefaultCommand(t *testing.T) {
	l, paths, _ := newBuilder(t, nil)
	assert.Equal(t,
		[]string{"extra-x86_64-build", "-r", paths.Chroot(), "--", "--", "--skippgpcheck"},
		l.expand(build("1-1")))
}
