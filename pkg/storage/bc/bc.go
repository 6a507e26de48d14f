package bc

import (
	"os"

	"git.mills.io/prologic/bitcask"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/storage"
)

// bcStore is the type that must satisfy storage.Storage
type bcStore struct {
	s *bitcask.Bitcask

	l hclog.Logger
}

func init() {
	storage.RegisterCallback(newFactory)
}

func newFactory() {
	storage.RegisterFactory("bitcask", newBCStore)
}

func newBCStore(l hclog.Logger, p string) (storage.Storage, error) {
	x := new(bcStore)
	x.l = l.Named("bitcask")

	if p == "" {
		p = os.Getenv("AREPO_BITCASK_PATH")
	}
	if p == "" {
		x.l.Error("A path or AREPO_BITCASK_PATH must be set")
		return nil, errors.New("required path unset")
	}

	opts := []bitcask.Option{
		bitcask.WithMaxKeySize(1024),
		bitcask.WithMaxValueSize(1024 * 1000 * 32), // 32MiB
		bitcask.WithSync(true),
	}
	b, err := bitcask.Open(p, opts...)
	if err != nil {
		x.l.Error("Error initializing bitcask", "error", err)
		return nil, errors.Wrapf(err, "opening bitcask at %s", p)
	}
	x.s = b

	return x, nil
}

func (b *bcStore) Get(k []byte) ([]byte, error) {
	v, err := b.s.Get(k)
	switch err {
	case nil:
		return v, nil
	case bitcask.ErrKeyNotFound:
		return nil, nil
	default:
		return nil, err
	}
}

func (b *bcStore) Put(k, v []byte) error {
	return b.s.Put(k, v)
}

func (b *bcStore) Del(k []byte) error {
	return b.s.Delete(k)
}

func (b *bcStore) Keys(prefix []byte) ([][]byte, error) {
	var out [][]byte
	err := b.s.Scan(prefix, func(key []byte) error {
		out = append(out, append([]byte(nil), key...))
		return nil
	})
	return out, err
}

func (b *bcStore) Close() error {
	return b.s.Close()
}
