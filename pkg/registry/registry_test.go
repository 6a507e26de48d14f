package registry

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-maldridge/arepo/pkg/storage"
	"github.com/the-maldridge/arepo/pkg/types"
)

// fakeClock hands out times under test control.
type fakeClock struct {
	sync.Mutex
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.Lock()
	defer c.Unlock()
	c.t = t
}

func pkg(base, version string) types.Package {
	return types.Package{
		Base:     base,
		Version:  version,
		Packages: map[string]types.PackageDescription{base: {}},
	}
}

func TestUnknownPackage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	_, err = r.Get("ghost")
	assert.ErrorIs(t, err, ErrUnknownPackage)

	err = r.Update("ghost", types.StatusPending)
	assert.ErrorIs(t, err, ErrUnknownPackage)
	assert.Empty(t, r.List())
}

func TestAddUpdateRemove(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	r, err := New(WithClock(clk.Now))
	require.NoError(t, err)

	require.NoError(t, r.SetUnknown(pkg("b", "1.0-1")))
	require.NoError(t, r.Add(pkg("a", "2.0-1"), types.StatusSuccess))

	e, err := r.Get("b")
	require.NoError(t, err)
	assert.Equal(t, types.StatusUnknown, e.Status.Status)
	assert.Equal(t, int64(1000), e.Status.Timestamp)

	clk.Set(time.Unix(2000, 0))
	require.NoError(t, r.SetPending("b"))
	e, err = r.Get("b")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, e.Status.Status)
	assert.Equal(t, int64(2000), e.Status.Timestamp)
	assert.Equal(t, "1.0-1", e.Package.Version)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Package.Base)
	assert.Equal(t, "b", list[1].Package.Base)

	require.NoError(t, r.Remove("a"))
	require.NoError(t, r.Remove("a"))
	_, err = r.Get("a")
	assert.ErrorIs(t, err, ErrUnknownPackage)
}

func TestAddRejectsEmptyBase(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.Error(t, r.Add(types.Package{}, types.StatusUnknown))
}

func TestTimestampsNeverGoBackwards(t *testing.T) {
	clk := &fakeClock{t: time.Unix(5000, 0)}
	r, err := New(WithClock(clk.Now))
	require.NoError(t, err)

	require.NoError(t, r.SetUnknown(pkg("a", "1-1")))
	clk.Set(time.Unix(10, 0))
	require.NoError(t, r.SetBuilding("a"))

	e, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, types.StatusBuilding, e.Status.Status)
	assert.Equal(t, int64(5000), e.Status.Timestamp)

	require.NoError(t, r.SetSelf(types.StatusBuilding))
	assert.Equal(t, types.StatusBuilding, r.Self().Status)
	assert.Equal(t, int64(5000), r.Self().Timestamp)
}

func TestGetReturnsCopy(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	require.NoError(t, r.SetUnknown(pkg("a", "1-1")))

	e, err := r.Get("a")
	require.NoError(t, err)
	e.Package.Packages["injected"] = types.PackageDescription{}

	e, err = r.Get("a")
	require.NoError(t, err)
	assert.Len(t, e.Package.Packages, 1)
}

func TestPersistenceRoundTrip(t *testing.T) {
	store := storage.NewMemory()
	r, err := New(WithStorage(store))
	require.NoError(t, err)
	require.NoError(t, r.Add(pkg("a", "1-1"), types.StatusFailed))
	require.NoError(t, r.Add(pkg("b", "1-1"), types.StatusSuccess))
	require.NoError(t, r.Remove("b"))
	require.NoError(t, r.SetSelf(types.StatusFailed))
	self := r.Self()

	r2, err := New(WithStorage(store))
	require.NoError(t, err)
	list := r2.List()
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].Package.Base)
	assert.Equal(t, types.StatusFailed, list[0].Status.Status)

	assert.Equal(t, self, r2.Self())
}

func TestSchemaVersion(t *testing.T) {
	store := storage.NewMemory()
	_, err := New(WithStorage(store))
	require.NoError(t, err)

	raw, err := store.Get(schemaKey)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(SchemaVersion()), string(raw))

	require.NoError(t, store.Put(schemaKey, []byte(fmt.Sprint(SchemaVersion()+1))))
	_, err = New(WithStorage(store))
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	require.NoError(t, store.Put(schemaKey, []byte("garbage")))
	_, err = New(WithStorage(store))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestConcurrentWrites(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			base := fmt.Sprintf("pkg%02d", i)
			assert.NoError(t, r.SetUnknown(pkg(base, "1-1")))
			assert.NoError(t, r.SetBuilding(base))
			assert.NoError(t, r.SetSuccess(pkg(base, "1-2")))
		}(i)
	}
	wg.Wait()

	list := r.List()
	require.Len(t, list, 20)
	for _, e := range list {
		assert.Equal(t, types.StatusSuccess, e.Status.Status)
		assert.Equal(t, "1-2", e.Package.Version)
		assert.True(t, strings.HasPrefix(e.Package.Base, "pkg"))
	}
}

func TestQueue(t *testing.T) {
	q := NewQueue(hclogNull(), nil)

	require.NoError(t, q.Push(pkg("b", "1-1")))
	require.NoError(t, q.Push(pkg("a", "1-1")))
	require.NoError(t, q.Push(pkg("a", "1-2")))

	list, err := q.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Base)
	assert.Equal(t, "1-2", list[0].Version)

	require.NoError(t, q.Remove("b"))
	list, err = q.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, q.Clear())
	list, err = q.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestQueueSharesStoreWithRegistry(t *testing.T) {
	store := storage.NewMemory()
	r, err := New(WithStorage(store))
	require.NoError(t, err)
	q := NewQueue(hclogNull(), store)

	require.NoError(t, q.Push(pkg("a", "1-1")))
	require.NoError(t, r.SetUnknown(pkg("b", "1-1")))

	require.NoError(t, q.Clear())
	_, err = r.Get("b")
	assert.NoError(t, err)
}
