package trigger

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/arepo/pkg/types"
)

// A Trigger is an extension point that is notified around builds.
// OnResult is given the result of a build step together with every
// package currently in the repository.
type Trigger interface {
	OnStart(context.Context) error
	OnResult(context.Context, *types.Result, []types.Package) error
	OnStop(context.Context) error
}

// GitRemote configures the gitremote trigger.
type GitRemote struct {
	URL         string
	Branch      string
	CommitUser  string
	CommitEmail string
}

// Options are handed to every trigger factory.
type Options struct {
	Paths     types.RepositoryPaths
	GitRemote GitRemote
}

// A Factory constructs a trigger.
type Factory func(l hclog.Logger, o Options) (Trigger, error)

// ErrUnknownTrigger is returned when the configuration names a trigger
// that is not registered.
type ErrUnknownTrigger struct {
	attempted string
}

func (e ErrUnknownTrigger) Error() string {
	return "no trigger with name " + e.attempted + " exists"
}

// Repository lists the packages handed to OnResult.
type Repository interface {
	Packages() []types.Package
}

type loaded struct {
	name string
	t    Trigger
}

// A Loader runs a configured set of triggers in order.  It is the
// finalizer of the scheduler.
type Loader struct {
	l        hclog.Logger
	repo     Repository
	triggers []loaded
}
