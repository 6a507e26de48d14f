package graph

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/arepo/pkg/types"
)

// Load resolves the dependencies of every package with a pool of
// parallelism workers and returns the resulting tree.  Packages whose
// dependencies could not be fetched are left out of the tree and
// reported through a *LoadError.
func Load(ctx context.Context, l hclog.Logger, packages []types.Package, fetcher RecipeFetcher, parallelism int) (*Tree, error) {
	l = l.Named("graph")
	if parallelism < 1 {
		parallelism = 1
	}

	loadCh := make(chan int, len(packages))
	leaves := make([]*Leaf, len(packages))
	failed := make(map[string]error)
	failedMutex := new(sync.Mutex)
	wg := new(sync.WaitGroup)

	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for idx := range loadCh {
				p := packages[idx]
				if err := ctx.Err(); err != nil {
					failedMutex.Lock()
					failed[p.Base] = err
					failedMutex.Unlock()
					continue
				}
				l.Trace("Loading dependencies", "base", p.Base, "worker", id)
				deps, err := fetcher.Dependencies(ctx, p)
				if err != nil {
					l.Warn("Error loading dependencies", "base", p.Base, "error", err)
					failedMutex.Lock()
					failed[p.Base] = err
					failedMutex.Unlock()
					continue
				}
				leaves[idx] = NewLeaf(p, deps)
			}
		}(i)
	}

	for i := range packages {
		loadCh <- i
	}
	close(loadCh)
	wg.Wait()

	t := &Tree{}
	for _, leaf := range leaves {
		if leaf != nil {
			t.leaves = append(t.leaves, leaf)
		}
	}
	l.Debug("Loaded tree", "leaves", len(t.leaves), "failed", len(failed))

	if len(failed) > 0 {
		return t, &LoadError{Failed: failed}
	}
	return t, nil
}
