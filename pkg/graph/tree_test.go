package graph

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-maldridge/arepo/pkg/types"
)

type fakeFetcher struct {
	deps  map[string][]string
	fail  map[string]bool
	calls int32
}

func (f *fakeFetcher) Dependencies(_ context.Context, p types.Package) ([]string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fail[p.Base] {
		return nil, errors.New("recipe unavailable")
	}
	return f.deps[p.Base], nil
}

func mkpkg(base string, provides ...string) types.Package {
	return types.Package{
		Base:     base,
		Version:  "1-1",
		Packages: map[string]types.PackageDescription{base: {Provides: provides}},
	}
}

func bases(levels [][]types.Package) [][]string {
	out := make([][]string, len(levels))
	for i, lvl := range levels {
		for _, p := range lvl {
			out[i] = append(out[i], p.Base)
		}
	}
	return out
}

func TestLevelsChain(t *testing.T) {
	tree := NewTree(
		NewLeaf(mkpkg("C"), []string{"B"}),
		NewLeaf(mkpkg("A"), nil),
		NewLeaf(mkpkg("B"), []string{"A>=1.0"}),
	)
	levels, err := tree.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A"}, {"B"}, {"C"}}, bases(levels))
}

func TestLevelsIndependent(t *testing.T) {
	tree := NewTree(
		NewLeaf(mkpkg("B"), []string{"glibc"}),
		NewLeaf(mkpkg("A"), nil),
	)
	levels, err := tree.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A", "B"}}, bases(levels))
}

func TestLevelsEmpty(t *testing.T) {
	levels, err := NewTree().Levels()
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestLevelsDefersUnneededLeaves(t *testing.T) {
	tree := NewTree(
		NewLeaf(mkpkg("A"), nil),
		NewLeaf(mkpkg("B"), []string{"A"}),
		NewLeaf(mkpkg("C"), []string{"B"}),
		NewLeaf(mkpkg("D"), nil),
	)
	levels, err := tree.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A"}, {"B"}, {"C", "D"}}, bases(levels))
}

func TestLevelsResolveProvides(t *testing.T) {
	tree := NewTree(
		NewLeaf(mkpkg("app"), []string{"libfoo.so=1-64"}),
		NewLeaf(mkpkg("foo", "libfoo.so=1-64"), nil),
	)
	levels, err := tree.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"foo"}, {"app"}}, bases(levels))
}

func TestLevelsSelfDependencyIsRoot(t *testing.T) {
	p := mkpkg("split")
	p.Packages["split-libs"] = types.PackageDescription{}
	tree := NewTree(NewLeaf(p, []string{"split-libs"}))
	levels, err := tree.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"split"}}, bases(levels))
}

func TestLevelsCycleStalls(t *testing.T) {
	tree := NewTree(
		NewLeaf(mkpkg("ok"), nil),
		NewLeaf(mkpkg("x"), []string{"y"}),
		NewLeaf(mkpkg("y"), []string{"x"}),
	)
	_, err := tree.Levels()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGraphStall)

	var stall *StallError
	require.ErrorAs(t, err, &stall)
	assert.Equal(t, []string{"x", "y"}, stall.Remaining)
}

func TestLevelsValidAndDeterministic(t *testing.T) {
	deps := map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
		"e": nil,
		"f": {"e", "d"},
		"g": {"zlib"},
		"h": {"c"},
	}
	build := func(order []string) [][]types.Package {
		var leaves []*Leaf
		for _, b := range order {
			leaves = append(leaves, NewLeaf(mkpkg(b), deps[b]))
		}
		levels, err := NewTree(leaves...).Levels()
		require.NoError(t, err)
		return levels
	}

	first := build([]string{"a", "b", "c", "d", "e", "f", "g", "h"})
	second := build([]string{"h", "g", "f", "e", "d", "c", "b", "a"})
	assert.Equal(t, bases(first), bases(second))

	levelOf := make(map[string]int)
	for i, lvl := range first {
		for j, p := range lvl {
			levelOf[p.Base] = i
			if j > 0 {
				assert.Less(t, lvl[j-1].Base, p.Base)
			}
		}
	}
	assert.Len(t, levelOf, len(deps))
	for base, ds := range deps {
		for _, d := range ds {
			dl, known := levelOf[d]
			if !known {
				continue
			}
			assert.Less(t, dl, levelOf[base], "%s must build before %s", d, base)
		}
	}
}

func TestLoad(t *testing.T) {
	f := &fakeFetcher{
		deps: map[string][]string{"B": {"A"}, "C": {"B"}},
		fail: map[string]bool{"broken": true},
	}
	pkgs := []types.Package{mkpkg("A"), mkpkg("B"), mkpkg("C"), mkpkg("broken")}

	tree, err := Load(context.Background(), hclog.NewNullLogger(), pkgs, f, 3)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, []string{"broken"}, le.Bases())
	assert.EqualValues(t, 4, f.calls)

	require.NotNil(t, tree)
	assert.Len(t, tree.Leaves(), 3)
	levels, err := tree.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A"}, {"B"}, {"C"}}, bases(levels))
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{}
	tree, err := Load(ctx, hclog.NewNullLogger(), []types.Package{mkpkg("A")}, f, 0)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, le.Failed["A"], context.Canceled)
	assert.Empty(t, tree.Leaves())
	assert.EqualValues(t, 0, f.calls)
}
