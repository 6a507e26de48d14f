package manager

import (
	"context"
	"sort"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/the-maldridge/arepo/pkg/types"
)

// RunArchitectures calls fn once per architecture with at most
// workers running at a time.  Architectures share nothing, so a
// failure in one does not stop the others.  Results are sorted by
// architecture.
func RunArchitectures(ctx context.Context, l hclog.Logger, archs []string, workers int, fn func(context.Context, string) error) []ArchResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]ArchResult, len(archs))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, arch := range archs {
		i, arch := i, arch
		g.Go(func() error {
			l.Debug("Starting architecture", "arch", arch)
			err := fn(ctx, arch)
			if err != nil {
				l.Error("Architecture failed", "arch", arch, "error", err)
			}
			results[i] = ArchResult{Arch: arch, Err: err}
			return nil
		})
	}
	g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Arch < results[j].Arch })
	return results
}

// Failed returns the architectures that returned an error.
func Failed(results []ArchResult) []string {
	var out []string
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r.Arch)
		}
	}
	return out
}

// ExitCode maps a result to the process exit status: 0 when everything
// that was attempted succeeded, 1 on any failure.  With emptyIsFailure
// a run that did nothing also exits 1.
func ExitCode(result *types.Result, emptyIsFailure bool) int {
	switch {
	case result == nil:
		return 1
	case result.HasFailures():
		return 1
	case emptyIsFailure && result.IsEmpty():
		return 1
	}
	return 0
}
