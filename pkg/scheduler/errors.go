package scheduler

import (
	"github.com/pkg/errors"
)

// ErrBuildFailed is matched by every error a failed build produces.
var ErrBuildFailed = errors.New("build failed")

// ErrUnknownBuilder is returned when a builder factory is requested
// that has not been registered.
type ErrUnknownBuilder struct {
	attempted string
}

// NewErrUnknownBuilder returns a new error specialized to the
// attempted builder.
func NewErrUnknownBuilder(s string) ErrUnknownBuilder {
	return ErrUnknownBuilder{s}
}

func (e ErrUnknownBuilder) Error() string {
	return "no builder with name " + e.attempted + " exists"
}

// BuildError carries the package and packager of a failed build.
type BuildError struct {
	Base     string
	Packager string
	Err      error
}

func (e *BuildError) Error() string {
	return "build of " + e.Base + " failed: " + e.Err.Error()
}

// Unwrap returns the error of the builder.
func (e *BuildError) Unwrap() error { return e.Err }

// Is makes every BuildError match ErrBuildFailed.
func (e *BuildError) Is(target error) bool { return target == ErrBuildFailed }
