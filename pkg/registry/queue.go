package registry

import (
	"encoding/json"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/storage"
	"github.com/the-maldridge/arepo/pkg/types"
)

const queuePrefix = "queue/"

// NewQueue returns a build queue that shares the given store with the
// registry.  A nil store keeps the queue in memory.
func NewQueue(l hclog.Logger, s storage.Storage) *Queue {
	if s == nil {
		s = storage.NewMemory()
	}
	return &Queue{
		l:     l.Named("queue"),
		store: s,
	}
}

// Push adds or replaces a package in the queue.
func (q *Queue) Push(pkg types.Package) error {
	raw, err := json.Marshal(pkg)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.store.Put([]byte(queuePrefix+pkg.Base), raw); err != nil {
		return errors.Wrapf(err, "queueing %s", pkg.Base)
	}
	q.l.Debug("Package queued", "base", pkg.Base, "version", pkg.Version)
	return nil
}

// List returns every queued package sorted by base.
func (q *Queue) List() ([]types.Package, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	keys, err := q.store.Keys([]byte(queuePrefix))
	if err != nil {
		return nil, errors.Wrap(err, "listing queue")
	}
	out := make([]types.Package, 0, len(keys))
	for _, k := range keys {
		raw, err := q.store.Get(k)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", k)
		}
		if raw == nil {
			continue
		}
		var p types.Package
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", k)
		}
		out = append(out, p)
	}
	types.SortPackages(out)
	return out, nil
}

// Remove drops a single base from the queue.
func (q *Queue) Remove(base string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Del([]byte(queuePrefix + base))
}

// Clear empties the queue.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	keys, err := q.store.Keys([]byte(queuePrefix))
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := q.store.Del(k); err != nil {
			return err
		}
	}
	return nil
}
