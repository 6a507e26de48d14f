package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/arepo/pkg/types"
)

// A Build is all the information required for a build
type Build struct {
	Package      types.Package
	Packager     string
	BumpRelease  bool
	LocalVersion string
	Architecture string
}

// Builders are a way for packages to be built.  Build blocks until
// the build is finished and returns the paths of the produced
// archives.
type Builder interface {
	Build(context.Context, Build) ([]string, error)
}

// BuilderOptions are handed to every builder factory.
type BuilderOptions struct {
	Paths types.RepositoryPaths

	// Command is the build command for builders that run one.
	// The placeholders {arch}, {chroot} and {packager} are
	// expanded.
	Command []string

	// Sources fetches the recipe of a package into its build
	// directory.
	Sources SourceFetcher

	// NomadJob is the parameterized job builds are dispatched to.
	NomadJob string
}

// SourceFetcher prepares the build directory of a package.
type SourceFetcher interface {
	Refresh(ctx context.Context, dir string, remote *types.RemoteSource) error
}

// Finalizer is called with the result of each level once it has been
// built.
type Finalizer interface {
	Finalize(context.Context, *types.Result) error
}

// StatusUpdater receives the status of every build.
type StatusUpdater interface {
	SetBuilding(base string) error
	SetFailed(base string) error
	SetSuccess(pkg types.Package) error
}

// Known lists the packages already in the repository.
type Known interface {
	Packages() []types.Package
}

// Packagers maps a package base to the identity that owns it.
type Packagers struct {
	Default string
	ByBase  map[string]string
}

// Running describes a build that is currently in progress.
type Running struct {
	Base     string    `json:"base"`
	Version  string    `json:"version"`
	Packager string    `json:"packager"`
	Started  time.Time `json:"started"`
}

// Scheduler builds levels of packages with a Builder.
type Scheduler struct {
	l hclog.Logger

	builder     Builder
	status      StatusUpdater
	known       Known
	finalizer   Finalizer
	concurrency int
	arch        string

	runningMutex *sync.Mutex
	running      map[string]Running
}

// Option configures a Scheduler.
type Option func(*Scheduler)
