package detector

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

var (
	// ErrRemoteLookup marks a failure to retrieve the upstream
	// description of a package.
	ErrRemoteLookup = errors.New("remote lookup failed")

	// ErrSourceRefresh marks a failure to synchronize a package's
	// source clone or to compute its version from it.
	ErrSourceRefresh = errors.New("source refresh failed")
)

// Lookup returns the upstream description of a package base.
type Lookup interface {
	Lookup(ctx context.Context, base string, source types.PackageSource) (types.Package, error)
}

// SourceRefresher brings the clone in dir up to date with remote.
type SourceRefresher interface {
	Refresh(ctx context.Context, dir string, remote *types.RemoteSource) error
}

// VersionComputer derives the version a live package would be built
// at from its checkout.
type VersionComputer interface {
	ActualVersion(ctx context.Context, dir string) (string, error)
}

// LocalLoader reads a package description from a recipe directory.
type LocalLoader interface {
	LoadSource(dir string) (types.Package, error)
}

// Known lists the packages that are already part of the repository.
type Known interface {
	Packages() []types.Package
}

// StatusWriter receives per-package progress while updates are
// computed.
type StatusWriter interface {
	SetPending(base string) error
	SetFailed(base string) error
	SetSuccess(pkg types.Package) error
	SetUnknown(pkg types.Package) error
}

// BuildQueue holds manually submitted packages.
type BuildQueue interface {
	List() ([]types.Package, error)
	Remove(base string) error
}

// Options selects which lanes Updates consults.
type Options struct {
	// Filter restricts the result to these bases when non-empty.
	Filter []string

	NoRemote bool
	NoLocal  bool
	NoManual bool

	// NoVCS skips live packages in the remote lane.
	NoVCS bool

	// KeepQueue leaves the build queue untouched.  Queued packages
	// are still reported.
	KeepQueue bool
}

// Detector decides which packages have to be rebuilt.
type Detector struct {
	l     hclog.Logger
	paths types.RepositoryPaths

	known     Known
	status    StatusWriter
	queue     BuildQueue
	lookup    Lookup
	refresher SourceRefresher
	versions  VersionComputer
	loader    LocalLoader

	ignore    map[string]struct{}
	freshness time.Duration
	now       func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)
