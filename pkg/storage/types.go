package storage

import (
	"github.com/pkg/errors"
)

// Storage is an interface for a generic blobstore.  Keys are
// namespaced by the caller with a "prefix/" convention.
type Storage interface {
	Get([]byte) ([]byte, error)
	Put([]byte, []byte) error
	Del([]byte) error

	// Keys lists every key that starts with prefix.
	Keys(prefix []byte) ([][]byte, error)

	Close() error
}

// ErrSchemaMismatch is returned when persisted state was written by a
// newer version of the software than the one reading it.
var ErrSchemaMismatch = errors.New("storage schema is newer than supported")
