package graph

import (
	"sort"

	"github.com/the-maldridge/arepo/pkg/types"
)

// NewLeaf wraps a package with its build dependencies.  Version
// constraints on the dependencies are ignored.
func NewLeaf(pkg types.Package, deps []string) *Leaf {
	l := &Leaf{
		Package:  pkg,
		deps:     make(map[string]struct{}, len(deps)),
		provides: pkg.Provides(),
	}
	for _, d := range deps {
		l.deps[types.StripConstraint(d)] = struct{}{}
	}
	return l
}

// Dependencies returns the sorted dependency names of the leaf.
func (l *Leaf) Dependencies() []string {
	out := make([]string, 0, len(l.deps))
	for d := range l.deps {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// needs is true if any of the names this other leaf produces is a
// dependency of l.
func (l *Leaf) needs(other *Leaf) bool {
	for name := range other.provides {
		if _, ok := l.deps[name]; ok {
			return true
		}
	}
	return false
}

// IsRoot reports whether none of the other leaves produce something
// this leaf depends on.
func (l *Leaf) IsRoot(others []*Leaf) bool {
	for _, o := range others {
		if o == l || o.Package.Base == l.Package.Base {
			continue
		}
		if l.needs(o) {
			return false
		}
	}
	return true
}

// IsDependency reports whether any of the given leaves depends on
// this one.
func (l *Leaf) IsDependency(others []*Leaf) bool {
	for _, o := range others {
		if o == l || o.Package.Base == l.Package.Base {
			continue
		}
		if o.needs(l) {
			return true
		}
	}
	return false
}

// NewTree builds a tree out of already loaded leaves.
func NewTree(leaves ...*Leaf) *Tree {
	return &Tree{leaves: leaves}
}

// Leaves returns the leaves of the tree.
func (t *Tree) Leaves() []*Leaf {
	return append([]*Leaf(nil), t.leaves...)
}

// Levels splits the tree into build levels.  Every package in a level
// only depends on packages from earlier levels.  A leaf that nothing
// in the following level requires is pushed forward so that it is
// built as late as possible.  Within a level packages are sorted by
// base.
func (t *Tree) Levels() ([][]types.Package, error) {
	var levels [][]*Leaf

	unprocessed := append([]*Leaf(nil), t.leaves...)
	for bound := len(t.leaves) + 1; len(unprocessed) > 0; bound-- {
		if bound == 0 {
			return nil, stall(unprocessed)
		}

		var roots, rest []*Leaf
		for _, leaf := range unprocessed {
			if leaf.IsRoot(unprocessed) {
				roots = append(roots, leaf)
			} else {
				rest = append(rest, leaf)
			}
		}
		if len(roots) == 0 {
			return nil, stall(unprocessed)
		}
		levels = append(levels, roots)
		unprocessed = rest
	}

	for i := 0; i < len(levels)-1; i++ {
		var keep []*Leaf
		for _, leaf := range levels[i] {
			if leaf.IsDependency(levels[i+1]) {
				keep = append(keep, leaf)
				continue
			}
			levels[i+1] = append(levels[i+1], leaf)
		}
		levels[i] = keep
	}

	out := make([][]types.Package, 0, len(levels))
	for _, level := range levels {
		if len(level) == 0 {
			continue
		}
		pkgs := make([]types.Package, len(level))
		for i, leaf := range level {
			pkgs[i] = leaf.Package
		}
		types.SortPackages(pkgs)
		out = append(out, pkgs)
	}
	return out, nil
}

func stall(remaining []*Leaf) error {
	bases := make([]string, len(remaining))
	for i, leaf := range remaining {
		bases[i] = leaf.Package.Base
	}
	sort.Strings(bases)
	return &StallError{Remaining: bases}
}
