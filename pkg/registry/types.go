package registry

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/storage"
	"github.com/the-maldridge/arepo/pkg/types"
)

var (
	// ErrUnknownPackage is returned when a status is requested or
	// updated for a base that was never added.
	ErrUnknownPackage = errors.New("unknown package")

	// ErrSchemaMismatch is returned at startup when the persisted
	// registry was written by a newer version.
	ErrSchemaMismatch = storage.ErrSchemaMismatch
)

// Entry is a package snapshot together with its latest status.
type Entry struct {
	Package types.Package     `json:"package"`
	Status  types.BuildStatus `json:"status"`
}

// Registry is the single source of truth for build statuses.  All
// writes are serialized and persisted before they become visible.
type Registry struct {
	l hclog.Logger

	mu      sync.RWMutex
	entries map[string]Entry
	self    types.BuildStatus

	store storage.Storage
	now   func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// A Queue holds manually submitted packages until the next update
// picks them up.
type Queue struct {
	l     hclog.Logger
	mu    sync.Mutex
	store storage.Storage
}
