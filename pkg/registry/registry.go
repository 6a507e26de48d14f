package registry

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/storage"
	"github.com/the-maldridge/arepo/pkg/types"
)

const statusPrefix = "status/"

var selfKey = []byte("meta/self")

// New returns a registry that has checked the schema of its storage
// and loaded every persisted status.
func New(opts ...Option) (*Registry, error) {
	r := &Registry{
		l:       hclog.NewNullLogger(),
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.store == nil {
		r.store = storage.NewMemory()
	}
	r.self = types.NewBuildStatus(types.StatusUnknown, r.now())

	if err := r.checkSchema(); err != nil {
		return nil, err
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func statusKey(base string) []byte {
	return []byte(statusPrefix + base)
}

func (r *Registry) load() error {
	keys, err := r.store.Keys([]byte(statusPrefix))
	if err != nil {
		return errors.Wrap(err, "listing statuses")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := r.store.Get(selfKey)
	if err != nil {
		return errors.Wrap(err, "loading self status")
	}
	if raw != nil {
		var self types.BuildStatus
		if err := json.Unmarshal(raw, &self); err != nil {
			r.l.Warn("Dropping unreadable self status", "error", err)
		} else {
			r.self = self
		}
	}

	for _, k := range keys {
		raw, err := r.store.Get(k)
		if err != nil {
			return errors.Wrapf(err, "loading %s", k)
		}
		if raw == nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			r.l.Warn("Dropping unreadable status", "key", string(k), "error", err)
			continue
		}
		r.entries[strings.TrimPrefix(string(k), statusPrefix)] = e
	}
	r.l.Debug("Loaded statuses", "count", len(r.entries))
	return nil
}

// stamp returns a status for base whose timestamp never goes
// backwards relative to the previous write.  Callers hold mu.
func (r *Registry) stamp(prev types.BuildStatus, s types.StatusEnum) types.BuildStatus {
	bs := types.NewBuildStatus(s, r.now())
	if bs.Timestamp < prev.Timestamp {
		bs.Timestamp = prev.Timestamp
	}
	return bs
}

// write persists and then publishes an entry.  Callers hold mu.
func (r *Registry) write(e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := r.store.Put(statusKey(e.Package.Base), raw); err != nil {
		return errors.Wrapf(err, "persisting status of %s", e.Package.Base)
	}
	r.entries[e.Package.Base] = e
	return nil
}

// Get returns the package and status known for base.
func (r *Registry) Get(base string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[base]
	if !ok {
		return Entry{}, errors.Wrap(ErrUnknownPackage, base)
	}
	e.Package = e.Package.Clone()
	return e, nil
}

// Add inserts or replaces the package snapshot and sets its status.
func (r *Registry) Add(pkg types.Package, s types.StatusEnum) error {
	if pkg.Base == "" {
		return errors.New("package base must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.entries[pkg.Base]
	e := Entry{Package: pkg.Clone(), Status: r.stamp(prev.Status, s)}
	if err := r.write(e); err != nil {
		return err
	}
	r.l.Trace("Status added", "base", pkg.Base, "status", s)
	return nil
}

// Update changes the status of a package that is already known.
func (r *Registry) Update(base string, s types.StatusEnum) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[base]
	if !ok {
		return errors.Wrap(ErrUnknownPackage, base)
	}
	e.Status = r.stamp(e.Status, s)
	if err := r.write(e); err != nil {
		return err
	}
	r.l.Trace("Status updated", "base", base, "status", s)
	return nil
}

// Remove forgets a package entirely.  Removing an unknown base is not
// an error.
func (r *Registry) Remove(base string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Del(statusKey(base)); err != nil {
		return errors.Wrapf(err, "removing status of %s", base)
	}
	delete(r.entries, base)
	r.l.Debug("Status removed", "base", base)
	return nil
}

// List returns every known entry sorted by base.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		e.Package = e.Package.Clone()
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Package.Base < out[j].Package.Base })
	return out
}

// Packages returns the snapshots of every known package.
func (r *Registry) Packages() []types.Package {
	entries := r.List()
	out := make([]types.Package, len(entries))
	for i, e := range entries {
		out[i] = e.Package
	}
	return out
}

// Self returns the status of the orchestrator process itself.
func (r *Registry) Self() types.BuildStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.self
}

// SetSelf updates the status of the orchestrator process.  Like
// package statuses it is persisted before it becomes visible.
func (r *Registry) SetSelf(s types.StatusEnum) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	self := r.stamp(r.self, s)
	raw, err := json.Marshal(self)
	if err != nil {
		return err
	}
	if err := r.store.Put(selfKey, raw); err != nil {
		return errors.Wrap(err, "persisting self status")
	}
	r.self = self
	return nil
}

// SetPending marks a known package as waiting to be built.
func (r *Registry) SetPending(base string) error {
	return r.Update(base, types.StatusPending)
}

// SetBuilding marks a known package as building.
func (r *Registry) SetBuilding(base string) error {
	return r.Update(base, types.StatusBuilding)
}

// SetFailed marks a known package as failed.
func (r *Registry) SetFailed(base string) error {
	return r.Update(base, types.StatusFailed)
}

// SetSuccess records a package snapshot as successfully built.
func (r *Registry) SetSuccess(pkg types.Package) error {
	return r.Add(pkg, types.StatusSuccess)
}

// SetUnknown records a package seen for the first time.
func (r *Registry) SetUnknown(pkg types.Package) error {
	return r.Add(pkg, types.StatusUnknown)
}
