package lock

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-maldridge/arepo/pkg/types"
)

type recorder struct {
	seen []types.StatusEnum
}

func (r *recorder) SetSelf(s types.StatusEnum) error {
	r.seen = append(r.seen, s)
	return nil
}

func TestExclusive(t *testing.T) {
	root := t.TempDir()
	first := New(hclog.NewNullLogger(), root, "x86_64")
	second := New(hclog.NewNullLogger(), root, "x86_64")

	require.NoError(t, first.Acquire())
	assert.ErrorIs(t, second.Acquire(), ErrLockHeld)

	require.NoError(t, first.Release())
	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
}

func TestArchitecturesAreIndependent(t *testing.T) {
	root := t.TempDir()
	x86 := New(hclog.NewNullLogger(), root, "x86_64")
	arm := New(hclog.NewNullLogger(), root, "aarch64")

	require.NoError(t, x86.Acquire())
	defer x86.Release()
	require.NoError(t, arm.Acquire())
	defer arm.Release()
}

func TestForce(t *testing.T) {
	root := t.TempDir()
	first := New(hclog.NewNullLogger(), root, "x86_64")
	forced := New(hclog.NewNullLogger(), root, "x86_64", WithForce(true))

	require.NoError(t, first.Acquire())
	defer first.Release()
	require.NoError(t, forced.Acquire())
	require.NoError(t, forced.Release())
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	lk := New(hclog.NewNullLogger(), root, "x86_64", WithSelfStatus(rec))

	err := lk.Run(context.Background(), func(context.Context) error {
		other := New(hclog.NewNullLogger(), root, "x86_64")
		assert.ErrorIs(t, other.Acquire(), ErrLockHeld)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []types.StatusEnum{types.StatusBuilding, types.StatusSuccess}, rec.seen)

	boom := errors.New("boom")
	err = lk.Run(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, types.StatusFailed, rec.seen[len(rec.seen)-1])

	// released even though fn failed
	other := New(hclog.NewNullLogger(), root, "x86_64")
	require.NoError(t, other.Acquire())
	require.NoError(t, other.Release())
}

func TestRunLockHeld(t *testing.T) {
	root := t.TempDir()
	holder := New(hclog.NewNullLogger(), root, "x86_64")
	require.NoError(t, holder.Acquire())
	defer holder.Release()

	rec := &recorder{}
	called := false
	err := New(hclog.NewNullLogger(), root, "x86_64", WithSelfStatus(rec)).Run(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.False(t, called)
	assert.Empty(t, rec.seen)
}
