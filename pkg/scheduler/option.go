package scheduler

import (
	"github.com/hashicorp/go-hclog"
)

// WithLogger sets the parent logger.
func WithLogger(l hclog.Logger) Option {
	return func(s *Scheduler) {
		s.l = l.Named("scheduler")
	}
}

// WithBuilder provides the builder packages are handed to.
func WithBuilder(b Builder) Option {
	return func(s *Scheduler) {
		s.builder = b
	}
}

// WithStatus sets where build statuses are recorded.
func WithStatus(st StatusUpdater) Option {
	return func(s *Scheduler) {
		s.status = st
	}
}

// WithKnown provides the currently published versions, used to bump
// the release of identical rebuilds.
func WithKnown(k Known) Option {
	return func(s *Scheduler) {
		s.known = k
	}
}

// WithFinalizer sets the hook that runs after each level.
func WithFinalizer(f Finalizer) Option {
	return func(s *Scheduler) {
		s.finalizer = f
	}
}

// WithConcurrency bounds the number of builds running at once within
// one level.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithArchitecture sets the architecture handed to the builder.
func WithArchitecture(a string) Option {
	return func(s *Scheduler) {
		s.arch = a
	}
}
