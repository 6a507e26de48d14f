package trigger

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

func init() {
	factories = make(map[string]Factory)
	log = hclog.L()

	Register("report", newReport)
}

// SetLogger injects a logger into this package to allow setting up a
// logger tree.
func SetLogger(l hclog.Logger) {
	log = l.Named("trigger")
}

// RegisterCallback allows a sub pkg to defer registration until the
// logger has been set up.
func RegisterCallback(f func()) {
	initcallbacks = append(initcallbacks, f)
}

// DoCallbacks invokes all registration callbacks.
func DoCallbacks() {
	for _, cb := range initcallbacks {
		cb()
	}
}

// Register makes a trigger available under name.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exists := factories[name]; exists {
		log.Warn("Trigger name collision", "trigger", name)
		return
	}
	factories[name] = f
	log.Debug("Registered trigger", "trigger", name)
}

// List returns the names of all registered triggers.
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

func construct(name string, o Options) (Trigger, error) {
	factoriesMu.Lock()
	f, ok := factories[name]
	factoriesMu.Unlock()
	if !ok {
		log.Error("Non-existant trigger requested", "trigger", name)
		return nil, ErrUnknownTrigger{name}
	}
	return f(log, o)
}
