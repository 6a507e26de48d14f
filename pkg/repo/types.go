package repo

import (
	"net/http"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

var (
	// ErrNoSuchPackage is returned when no index knows a base.
	ErrNoSuchPackage = errors.New("no such package")

	// ErrNoUpstream is returned for sources that have nothing to
	// look up.
	ErrNoUpstream = errors.New("package has no upstream")
)

// IndexService is a wrapper around a lot of functions that
// interrogate sync databases.
type IndexService struct {
	l       hclog.Logger
	hClient *http.Client

	mu       sync.RWMutex
	packages map[string]*types.Package
	repos    map[string]string
}

// AUR talks to the user repository's RPC interface.
type AUR struct {
	l       hclog.Logger
	hClient *http.Client

	Url string
}

// Lookup picks the right upstream for a package source.
type Lookup struct {
	l     hclog.Logger
	aur   *AUR
	index *IndexService
}
