package scheduler

import (
	"sort"

	"github.com/hashicorp/go-hclog"
)

var (
	log hclog.Logger

	initcallbacks []func()

	factories map[string]BuilderFactory
)

// A BuilderFactory is a constructor of a builder plugin.  It takes a
// logger which should be used to write out early init issues, and the
// options that are shared by all builders.
type BuilderFactory func(l hclog.Logger, o BuilderOptions) (Builder, error)

func init() {
	factories = make(map[string]BuilderFactory)
	log = hclog.L()
}

// SetLogger injects a logger into this package to allow setting up a
// logger tree.
func SetLogger(l hclog.Logger) {
	log = l.Named("builder")
}

// RegisterInitCallback allows a sub pkg to defer initialization until
// after certain very early init has happened such as loading config
// files and configuring loggers.
func RegisterInitCallback(f func()) {
	initcallbacks = append(initcallbacks, f)
}

// DoCallbacks is used to invoke all callbacks and perform phase one
// setup which will register the handlers to the map of factories.
func DoCallbacks() {
	for _, cb := range initcallbacks {
		cb()
	}
}

// RegisterBuilderFactory blindly stores the factory at the given
// name.  All the factories are enabled at build time, so a name
// collision is a programming error.
func RegisterBuilderFactory(name string, f BuilderFactory) {
	factories[name] = f
	log.Debug("Registered builder", "builder", name)
}

// Builders returns the names of the registered builders.
func Builders() []string {
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ConstructBuilder attempts to initialize the requested builder.
func ConstructBuilder(name string, o BuilderOptions) (Builder, error) {
	f, ok := factories[name]
	if !ok {
		log.Warn("Tried to initialize with bogus builder name", "name", name)
		return nil, NewErrUnknownBuilder(name)
	}
	return f(log, o)
}
