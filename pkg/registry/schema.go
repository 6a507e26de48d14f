package registry

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/storage"
)

var schemaKey = []byte("meta/schema-version")

// A migration rewrites persisted state from one schema version to the
// next.
type migration func(storage.Storage) error

// migrations[i] upgrades version i to version i+1.  Changes must be
// additive; only ever append.
var migrations = []migration{
	// 0 -> 1: initial layout, status/<base> holding a JSON Entry.
	func(storage.Storage) error { return nil },
}

// SchemaVersion is the version this build writes.
func SchemaVersion() int {
	return len(migrations)
}

func (r *Registry) checkSchema() error {
	raw, err := r.store.Get(schemaKey)
	if err != nil {
		return errors.Wrap(err, "reading schema version")
	}

	current := 0
	if raw != nil {
		current, err = strconv.Atoi(string(raw))
		if err != nil {
			return errors.Wrapf(ErrSchemaMismatch, "unparseable schema version %q", raw)
		}
	}

	expected := SchemaVersion()
	switch {
	case current == expected:
		return nil
	case current > expected:
		r.l.Error("Registry schema is newer than this binary", "have", current, "want", expected)
		return errors.Wrapf(ErrSchemaMismatch, "registry schema %d > %d", current, expected)
	}

	for i := current; i < expected; i++ {
		r.l.Info("Migrating registry", "from", i, "to", i+1)
		if err := migrations[i](r.store); err != nil {
			return errors.Wrapf(err, "registry migration %d", i)
		}
		if err := r.store.Put(schemaKey, []byte(strconv.Itoa(i+1))); err != nil {
			return errors.Wrap(err, "writing schema version")
		}
	}
	return nil
}
