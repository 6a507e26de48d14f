package storage

import (
	"bytes"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"
)

func init() {
	RegisterCallback(func() { RegisterFactory("memory", newMemoryFactory) })
}

// memStore keeps everything in a map.  It backs dry runs and tests,
// nothing written to it survives the process.
type memStore struct {
	sync.Mutex

	data map[string][]byte
}

// NewMemory returns an empty in-process store.
func NewMemory() Storage {
	return &memStore{data: make(map[string][]byte)}
}

func newMemoryFactory(hclog.Logger, string) (Storage, error) {
	return NewMemory(), nil
}

func (m *memStore) Get(k []byte) ([]byte, error) {
	m.Lock()
	defer m.Unlock()
	v, ok := m.data[string(k)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *memStore) Put(k, v []byte) error {
	m.Lock()
	defer m.Unlock()
	m.data[string(k)] = append([]byte(nil), v...)
	return nil
}

func (m *memStore) Del(k []byte) error {
	m.Lock()
	defer m.Unlock()
	delete(m.data, string(k))
	return nil
}

func (m *memStore) Keys(prefix []byte) ([][]byte, error) {
	m.Lock()
	defer m.Unlock()
	var out [][]byte
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			out = append(out, []byte(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i], out[j]) < 0 })
	return out, nil
}

func (m *memStore) Close() error { return nil }
