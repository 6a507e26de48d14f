package storage

import (
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	log hclog.Logger

	initcallbacks []func()

	factoriesMu sync.Mutex
	factories   map[string]Factory
)

// A Factory creates a store instance rooted at the given path.
type Factory func(l hclog.Logger, path string) (Storage, error)

// ErrUnknownFactory is returned when a store is requested that has
// not been registered.
type ErrUnknownFactory struct {
	attempted string
}

func (e ErrUnknownFactory) Error() string {
	return "no storage factory with name " + e.attempted + " exists"
}

func init() {
	factories = make(map[string]Factory)
	log = hclog.L()
}

// SetLogger injects a logger into this package to allow setting up a
// logger tree.
func SetLogger(l hclog.Logger) {
	log = l.Named("storage")
}

// RegisterFactory registers a factory to the list of available state stores
// that can be used.
func RegisterFactory(s string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exists := factories[s]; exists {
		log.Warn("Store name collision", "store", s)
		return
	}
	factories[s] = f
	log.Debug("Registered store", "store", s)
}

// RegisterCallback provides a mechanism for early registration of a
// function to be called during initialization.  This allows the
// actual factories to be registered later once config parsing has
// happened, logging is configured, and other early-init tasks are
// complete.
func RegisterCallback(f func()) {
	initcallbacks = append(initcallbacks, f)
}

// DoCallbacks is used to invoke all callbacks and perform phase one
// setup which will register the handlers to the map of factories.
func DoCallbacks() {
	for _, cb := range initcallbacks {
		cb()
	}
}

// List returns the names of all registered stores.
func List() []string {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Initialize attempts to initialize the given store at path and
// returns either a ready to use store or an error.
func Initialize(s, path string) (Storage, error) {
	factoriesMu.Lock()
	f, ok := factories[s]
	factoriesMu.Unlock()
	if !ok {
		log.Error("Non-existant factory requested", "factory", s)
		return nil, ErrUnknownFactory{s}
	}
	return f(log, path)
}
