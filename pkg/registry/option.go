package registry

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/arepo/pkg/storage"
)

// WithLogger sets up the parent logger for the registry.
func WithLogger(l hclog.Logger) Option {
	return func(r *Registry) {
		r.l = l.Named("registry")
	}
}

// WithStorage enables persistence of statuses to a durable
// datastore.  Without it the registry lives in memory only.
func WithStorage(s storage.Storage) Option {
	return func(r *Registry) {
		r.store = s
	}
}

// WithClock overrides the source of timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}
