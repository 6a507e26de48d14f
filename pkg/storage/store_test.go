package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-maldridge/arepo/pkg/storage"
	_ "github.com/the-maldridge/arepo/pkg/storage/bc"
	_ "github.com/the-maldridge/arepo/pkg/storage/sqlite"
)

func init() {
	storage.SetLogger(hclog.NewNullLogger())
	storage.DoCallbacks()
}

func TestRegisteredBackends(t *testing.T) {
	assert.Equal(t, []string{"bitcask", "memory", "sqlite"}, storage.List())

	_, err := storage.Initialize("does-not-exist", "")
	var unknown storage.ErrUnknownFactory
	assert.ErrorAs(t, err, &unknown)
}

func TestBackends(t *testing.T) {
	for _, name := range storage.List() {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state")
			if name == "sqlite" {
				path += ".db"
			}
			s, err := storage.Initialize(name, path)
			require.NoError(t, err)
			defer s.Close()

			v, err := s.Get([]byte("status/missing"))
			require.NoError(t, err)
			assert.Nil(t, v)

			require.NoError(t, s.Put([]byte("status/b"), []byte("two")))
			require.NoError(t, s.Put([]byte("status/a"), []byte("one")))
			require.NoError(t, s.Put([]byte("queue/a"), []byte("queued")))
			require.NoError(t, s.Put([]byte("status/a"), []byte("uno")))

			v, err = s.Get([]byte("status/a"))
			require.NoError(t, err)
			assert.Equal(t, []byte("uno"), v)

			keys, err := s.Keys([]byte("status/"))
			require.NoError(t, err)
			assert.ElementsMatch(t, [][]byte{[]byte("status/a"), []byte("status/b")}, keys)

			require.NoError(t, s.Del([]byte("status/a")))
			v, err = s.Get([]byte("status/a"))
			require.NoError(t, err)
			assert.Nil(t, v)

			keys, err = s.Keys([]byte("queue/"))
			require.NoError(t, err)
			assert.Len(t, keys, 1)
		})
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := storage.Initialize("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, s.Put([]byte("k"), []byte("v")))
	require.NoError(t, s.Close())

	s, err = storage.Initialize("sqlite", path)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
