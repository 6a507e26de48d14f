package lock

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	flock "github.com/theckman/go-flock"

	"github.com/the-maldridge/arepo/pkg/types"
)

// ErrLockHeld is returned when another process already operates on
// the same repository and architecture.
var ErrLockHeld = errors.New("another instance is already running")

// SelfStatus receives the status of the running process.
type SelfStatus interface {
	SetSelf(types.StatusEnum) error
}

// Lock guards a repository root and architecture against concurrent
// runs.
type Lock struct {
	l hclog.Logger

	mu    sync.Mutex
	fl    *flock.Flock
	held  bool
	force bool

	self SelfStatus
}

// Option configures a Lock.
type Option func(*Lock)

// WithForce skips the exclusivity check.  The lock file is still
// taken when it is free.
func WithForce(force bool) Option {
	return func(lk *Lock) { lk.force = force }
}

// WithSelfStatus reports the state of the run while the lock is held.
func WithSelfStatus(s SelfStatus) Option {
	return func(lk *Lock) { lk.self = s }
}

// New returns a lock for the given root and architecture.  Nothing is
// locked until Acquire is called.
func New(l hclog.Logger, root, arch string, opts ...Option) *Lock {
	lk := &Lock{
		l:  l.Named("lock"),
		fl: flock.NewFlock(Path(root, arch)),
	}
	for _, o := range opts {
		o(lk)
	}
	return lk
}

// Path returns the lock file used for root and arch.
func Path(root, arch string) string {
	return filepath.Join(root, "arepo_"+arch+".lock")
}

// Acquire takes the lock without blocking.
func (lk *Lock) Acquire() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	if lk.held {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(lk.fl.Path()), 0755); err != nil {
		return err
	}
	ok, err := lk.fl.TryLock()
	if err != nil {
		return errors.Wrapf(err, "locking %s", lk.fl.Path())
	}
	if !ok {
		if !lk.force {
			return errors.Wrap(ErrLockHeld, lk.fl.Path())
		}
		lk.l.Warn("Ignoring lock held by another instance", "path", lk.fl.Path())
	}
	lk.held = true
	lk.l.Trace("Lock acquired", "path", lk.fl.Path())
	return nil
}

// Release drops the lock.  It is safe to call more than once.
func (lk *Lock) Release() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	if !lk.held {
		return nil
	}
	lk.held = false
	if !lk.fl.Locked() {
		return nil
	}
	return lk.fl.Unlock()
}

// Run executes fn while holding the lock.  The self status is set to
// building for the duration and to success or failed afterwards.
// The lock is released whatever fn returns.
func (lk *Lock) Run(ctx context.Context, fn func(context.Context) error) error {
	if err := lk.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := lk.Release(); err != nil {
			lk.l.Warn("Could not release lock", "error", err)
		}
	}()

	lk.setSelf(types.StatusBuilding)
	err := fn(ctx)
	if err != nil {
		lk.setSelf(types.StatusFailed)
		return err
	}
	lk.setSelf(types.StatusSuccess)
	return nil
}

func (lk *Lock) setSelf(s types.StatusEnum) {
	if lk.self != nil {
		if err := lk.self.SetSelf(s); err != nil {
			lk.l.Warn("Could not record self status", "status", s, "error", err)
		}
	}
}
