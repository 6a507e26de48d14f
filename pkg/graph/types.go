package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

// ErrGraphStall is returned when the remaining packages cannot be
// ordered any further, which only happens with a dependency cycle.
var ErrGraphStall = errors.New("dependency graph cannot make progress")

// RecipeFetcher obtains the set of names a package needs at build
// time.  Implementations usually have to fetch and parse the build
// recipe.
type RecipeFetcher interface {
	Dependencies(ctx context.Context, pkg types.Package) ([]string, error)
}

// Leaf is a package together with its resolved build dependencies.
type Leaf struct {
	Package types.Package

	deps     map[string]struct{}
	provides map[string]struct{}
}

// Tree is a flat collection of leaves that can be split into build
// levels.
type Tree struct {
	leaves []*Leaf
}

// StallError lists the bases that were left over when the resolver
// stopped making progress.
type StallError struct {
	Remaining []string
}

func (e *StallError) Error() string {
	return fmt.Sprintf("%s: %s", ErrGraphStall, strings.Join(e.Remaining, ", "))
}

// Unwrap allows errors.Is to match ErrGraphStall.
func (e *StallError) Unwrap() error { return ErrGraphStall }

// LoadError collects the bases whose dependencies could not be
// determined.  The tree returned alongside it is still usable.
type LoadError struct {
	Failed map[string]error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("could not load dependencies of %s", strings.Join(e.Bases(), ", "))
}

// Bases returns the failed bases in sorted order.
func (e *LoadError) Bases() []string {
	out := make([]string, 0, len(e.Failed))
	for b := range e.Failed {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}
