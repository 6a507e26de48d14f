package local

import (
	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/arepo/pkg/scheduler"
	"github.com/the-maldridge/arepo/pkg/types"
)

// Local is a builder that runs the build command on this host.
type Local struct {
	l       hclog.Logger
	paths   types.RepositoryPaths
	command []string
	sources scheduler.SourceFetcher
}
