package detector

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-maldridge/arepo/pkg/registry"
	"github.com/the-maldridge/arepo/pkg/storage"
	"github.com/the-maldridge/arepo/pkg/types"
)

type fakeLookup struct {
	mu    sync.Mutex
	pkgs  map[string]types.Package
	calls []string
}

func (f *fakeLookup) Lookup(_ context.Context, base string, _ types.PackageSource) (types.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, base)
	p, ok := f.pkgs[base]
	if !ok {
		return types.Package{}, errors.New("not found")
	}
	return p, nil
}

type fakeSource struct {
	refreshed []string
	failFor   map[string]bool
	version   string
	recipes   map[string]types.Package
}

func (f *fakeSource) Refresh(_ context.Context, dir string, _ *types.RemoteSource) error {
	f.refreshed = append(f.refreshed, filepath.Base(dir))
	if f.failFor[filepath.Base(dir)] {
		return errors.New("network is down")
	}
	return nil
}

func (f *fakeSource) ActualVersion(context.Context, string) (string, error) {
	return f.version, nil
}

func (f *fakeSource) LoadSource(dir string) (types.Package, error) {
	p, ok := f.recipes[filepath.Base(dir)]
	if !ok {
		return types.Package{}, errors.New("no PKGBUILD")
	}
	return p, nil
}

type fakeQueue struct {
	pkgs    []types.Package
	err     error
	removed []string
}

func (q *fakeQueue) List() ([]types.Package, error) { return q.pkgs, q.err }
func (q *fakeQueue) Remove(base string) error {
	q.removed = append(q.removed, base)
	return nil
}

func mkpkg(base, version string) types.Package {
	return types.Package{
		Base:     base,
		Version:  version,
		Packages: map[string]types.PackageDescription{base: {}},
	}
}

func newRegistry(t *testing.T, pkgs ...types.Package) *registry.Registry {
	r, err := registry.New()
	require.NoError(t, err)
	for _, p := range pkgs {
		require.NoError(t, r.SetSuccess(p))
	}
	return r
}

func status(t *testing.T, r *registry.Registry, base string) types.StatusEnum {
	e, err := r.Get(base)
	require.NoError(t, err)
	return e.Status.Status
}

func TestRemoteOutdatedIsPending(t *testing.T) {
	reg := newRegistry(t, mkpkg("a", "1.0-1"), mkpkg("b", "2.0-1"), mkpkg("c", "1.0-1"))
	lookup := &fakeLookup{pkgs: map[string]types.Package{
		"a": mkpkg("a", "1.0-2"),
		"b": mkpkg("b", "2.0-1"),
	}}
	d := New(hclog.NewNullLogger(), types.NewRepositoryPaths(t.TempDir(), "x86_64"),
		WithKnown(reg), WithStatus(reg), WithLookup(lookup))

	out := d.UpdatesRemote(context.Background(), nil, false)
	assert.Equal(t, []string{"a"}, Bases(out))
	assert.Equal(t, "1.0-2", out[0].Version)

	assert.Equal(t, types.StatusPending, status(t, reg, "a"))
	assert.Equal(t, types.StatusSuccess, status(t, reg, "b"))
	assert.Equal(t, types.StatusFailed, status(t, reg, "c"))
}

func TestRemoteFilterAndIgnore(t *testing.T) {
	reg := newRegistry(t, mkpkg("a", "1-1"), mkpkg("b", "1-1"), mkpkg("c", "1-1"))
	lookup := &fakeLookup{pkgs: map[string]types.Package{
		"a": mkpkg("a", "2-1"),
		"b": mkpkg("b", "2-1"),
		"c": mkpkg("c", "2-1"),
	}}
	d := New(hclog.NewNullLogger(), types.NewRepositoryPaths(t.TempDir(), "x86_64"),
		WithKnown(reg), WithStatus(reg), WithLookup(lookup), WithIgnoreList([]string{"c"}))

	out := d.UpdatesRemote(context.Background(), []string{"a", "c"}, false)
	assert.Equal(t, []string{"a"}, Bases(out))
	assert.Equal(t, []string{"a"}, lookup.calls)
}

func TestRemoteSkipsLocalOnly(t *testing.T) {
	tracked := mkpkg("mine", "1-1")
	tracked.Remote = &types.RemoteSource{Source: types.SourceLocal}
	reg := newRegistry(t, tracked, mkpkg("a", "1-1"))
	lookup := &fakeLookup{pkgs: map[string]types.Package{"a": mkpkg("a", "1-1")}}
	d := New(hclog.NewNullLogger(), types.NewRepositoryPaths(t.TempDir(), "x86_64"),
		WithKnown(reg), WithStatus(reg), WithLookup(lookup))

	assert.Empty(t, d.UpdatesRemote(context.Background(), nil, false))
	assert.Equal(t, []string{"a"}, lookup.calls)
	assert.Equal(t, types.StatusSuccess, status(t, reg, "mine"))
}

func TestRemoteVCS(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	fresh := mkpkg("fresh-git", "1.0.r1-1")
	fresh.Packages["fresh-git"] = types.PackageDescription{BuildDate: now.Add(-time.Hour).Unix()}
	stale := mkpkg("stale-git", "1.0.r1-1")
	stale.Packages["stale-git"] = types.PackageDescription{BuildDate: now.Add(-48 * time.Hour).Unix()}

	reg := newRegistry(t, fresh, stale)
	lookup := &fakeLookup{pkgs: map[string]types.Package{
		"fresh-git": mkpkg("fresh-git", "1.0.r1-1"),
		"stale-git": mkpkg("stale-git", "1.0.r1-1"),
	}}
	src := &fakeSource{version: "1.0.r9-1"}
	d := New(hclog.NewNullLogger(), types.NewRepositoryPaths(t.TempDir(), "x86_64"),
		WithKnown(reg), WithStatus(reg), WithLookup(lookup),
		WithRefresher(src), WithVersionComputer(src),
		WithVCSFreshness(24*time.Hour), WithClock(func() time.Time { return now }))

	out := d.UpdatesRemote(context.Background(), nil, false)
	assert.Equal(t, []string{"stale-git"}, Bases(out))
	assert.Equal(t, "1.0.r9-1", out[0].Version)
	assert.Equal(t, []string{"stale-git"}, src.refreshed)
	assert.Equal(t, types.StatusSuccess, status(t, reg, "fresh-git"))

	lookup.calls = nil
	out = d.UpdatesRemote(context.Background(), nil, true)
	assert.Empty(t, out)
	assert.Empty(t, lookup.calls)
}

func TestRemoteVCSRefreshFailure(t *testing.T) {
	reg := newRegistry(t, mkpkg("x-git", "1-1"))
	lookup := &fakeLookup{pkgs: map[string]types.Package{"x-git": mkpkg("x-git", "1-1")}}
	src := &fakeSource{failFor: map[string]bool{"x-git": true}}
	d := New(hclog.NewNullLogger(), types.NewRepositoryPaths(t.TempDir(), "x86_64"),
		WithKnown(reg), WithStatus(reg), WithLookup(lookup), WithRefresher(src), WithVersionComputer(src))

	_, _, err := d.checkRemote(context.Background(), mkpkg("x-git", "1-1"))
	assert.ErrorIs(t, err, ErrSourceRefresh)

	assert.Empty(t, d.UpdatesRemote(context.Background(), nil, false))
	assert.Equal(t, types.StatusFailed, status(t, reg, "x-git"))
}

func TestLocal(t *testing.T) {
	root := t.TempDir()
	paths := types.NewRepositoryPaths(root, "x86_64")
	require.NoError(t, paths.Tree())
	for _, b := range []string{"new", "old", "same", "broken"} {
		require.NoError(t, os.MkdirAll(paths.CacheFor(b), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(paths.Cache(), "stray-file"), nil, 0644))

	reg := newRegistry(t, mkpkg("old", "1-1"), mkpkg("same", "1-1"), mkpkg("broken", "1-1"))
	src := &fakeSource{
		failFor: map[string]bool{"broken": true},
		recipes: map[string]types.Package{
			"new":  mkpkg("new", "1-1"),
			"old":  mkpkg("old", "1-2"),
			"same": mkpkg("same", "1-1"),
		},
	}
	d := New(hclog.NewNullLogger(), paths,
		WithKnown(reg), WithStatus(reg), WithRefresher(src), WithLocalLoader(src))

	out := d.UpdatesLocal(context.Background())
	assert.Equal(t, []string{"new", "old"}, Bases(out))
	assert.Equal(t, types.StatusUnknown, status(t, reg, "new"))
	assert.Equal(t, types.StatusPending, status(t, reg, "old"))
	assert.Equal(t, types.StatusSuccess, status(t, reg, "same"))
	assert.Equal(t, types.StatusFailed, status(t, reg, "broken"))
}

func TestManual(t *testing.T) {
	reg := newRegistry(t, mkpkg("known", "1-1"))
	q := &fakeQueue{pkgs: []types.Package{mkpkg("known", "1-1"), mkpkg("fresh", "1-1")}}
	d := New(hclog.NewNullLogger(), types.NewRepositoryPaths(t.TempDir(), "x86_64"),
		WithKnown(reg), WithStatus(reg), WithQueue(q))

	out := d.UpdatesManual(context.Background(), nil, false)
	assert.Equal(t, []string{"fresh", "known"}, Bases(out))
	assert.ElementsMatch(t, []string{"fresh", "known"}, q.removed)
	assert.Equal(t, types.StatusPending, status(t, reg, "known"))
	assert.Equal(t, types.StatusUnknown, status(t, reg, "fresh"))
}

func TestManualQueueFailure(t *testing.T) {
	q := &fakeQueue{err: errors.New("disk on fire")}
	d := New(hclog.NewNullLogger(), types.NewRepositoryPaths(t.TempDir(), "x86_64"), WithQueue(q))

	out := d.UpdatesManual(context.Background(), nil, false)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Empty(t, q.removed)
}

func TestManualQueueFiltered(t *testing.T) {
	reg := newRegistry(t)
	q := registry.NewQueue(hclog.NewNullLogger(), storage.NewMemory())
	require.NoError(t, q.Push(mkpkg("foo", "1-1")))
	require.NoError(t, q.Push(mkpkg("bar", "1-1")))
	d := New(hclog.NewNullLogger(), types.NewRepositoryPaths(t.TempDir(), "x86_64"),
		WithKnown(reg), WithStatus(reg), WithQueue(q))

	out := d.Updates(context.Background(), Options{Filter: []string{"foo"}, NoRemote: true, NoLocal: true})
	assert.Equal(t, []string{"foo"}, Bases(out))

	left, err := q.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"bar"}, Bases(left))
}

func TestManualQueueKept(t *testing.T) {
	q := &fakeQueue{pkgs: []types.Package{mkpkg("foo", "1-1")}}
	reg := newRegistry(t)
	d := New(hclog.NewNullLogger(), types.NewRepositoryPaths(t.TempDir(), "x86_64"),
		WithKnown(reg), WithStatus(reg), WithQueue(q))

	out := d.Updates(context.Background(), Options{KeepQueue: true})
	assert.Equal(t, []string{"foo"}, Bases(out))
	assert.Empty(t, q.removed)
}

func TestUpdatesDeduplicatesAndIsIdempotent(t *testing.T) {
	root := t.TempDir()
	paths := types.NewRepositoryPaths(root, "x86_64")
	require.NoError(t, os.MkdirAll(paths.CacheFor("a"), 0755))

	reg := newRegistry(t, mkpkg("a", "1-1"), mkpkg("b", "1-1"))
	lookup := &fakeLookup{pkgs: map[string]types.Package{
		"a": mkpkg("a", "1-2"),
		"b": mkpkg("b", "1-3"),
	}}
	src := &fakeSource{recipes: map[string]types.Package{"a": mkpkg("a", "1-5")}}
	d := New(hclog.NewNullLogger(), paths,
		WithKnown(reg), WithStatus(reg), WithLookup(lookup),
		WithRefresher(src), WithLocalLoader(src), WithQueue(&fakeQueue{}))

	first := d.Updates(context.Background(), Options{})
	require.Equal(t, []string{"a", "b"}, Bases(first))
	assert.Equal(t, "1-5", first[0].Version)

	second := d.Updates(context.Background(), Options{})
	assert.Equal(t, first, second)

	filtered := d.Updates(context.Background(), Options{Filter: []string{"b"}, NoLocal: true})
	assert.Equal(t, []string{"b"}, Bases(filtered))

	assert.Empty(t, d.Updates(context.Background(), Options{NoRemote: true, NoLocal: true, NoManual: true}))
}
