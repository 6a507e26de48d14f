package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/the-maldridge/arepo/pkg/storage"
)

// migrations are applied in order, the index of the last applied
// migration plus one is kept in the user_version pragma.  Only ever
// append to this list.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS kv (
			key BLOB PRIMARY KEY,
			value BLOB NOT NULL
		)`,
	},
	{
		`ALTER TABLE kv ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0`,
	},
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

type sqliteStore struct {
	l    hclog.Logger
	pool *sqlitex.Pool
	path string
}

func init() {
	storage.RegisterCallback(newFactory)
}

func newFactory() {
	storage.RegisterFactory("sqlite", New)
}

// New opens (creating if needed) the database at path and brings its
// schema up to date.
func New(l hclog.Logger, path string) (storage.Storage, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    4,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: opening %s", path)
	}

	s := &sqliteStore{
		l:    l.Named("sqlite"),
		pool: pool,
		path: path,
	}
	if err := s.migrate(); err != nil {
		pool.Close()
		return nil, err
	}
	s.l.Debug("Database ready", "path", path, "schema", len(migrations))
	return s, nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, p := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, p, nil); err != nil {
			return errors.Wrap(err, p)
		}
	}
	return nil
}

func (s *sqliteStore) take() (*sqlite.Conn, error) {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: take")
	}
	return conn, nil
}

func userVersion(conn *sqlite.Conn) (int, error) {
	version := 0
	err := sqlitex.ExecuteTransient(conn, "PRAGMA user_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt(0)
			return nil
		},
	})
	return version, err
}

func (s *sqliteStore) migrate() (err error) {
	conn, err := s.take()
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	current, err := userVersion(conn)
	if err != nil {
		return errors.Wrap(err, "sqlite: reading schema version")
	}
	expected := len(migrations)
	switch {
	case current == expected:
		return nil
	case current > expected:
		s.l.Error("Database schema is newer than this binary", "have", current, "want", expected)
		return errors.Wrapf(storage.ErrSchemaMismatch, "sqlite schema %d > %d", current, expected)
	}

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return errors.Wrap(err, "sqlite: begin migration")
	}
	defer endFn(&err)

	for i := current; i < expected; i++ {
		s.l.Info("Applying migration", "index", i)
		for _, step := range migrations[i] {
			if err = sqlitex.ExecuteTransient(conn, step, nil); err != nil {
				return errors.Wrapf(err, "sqlite: migration %d", i)
			}
		}
	}
	// no placeholder support for pragmas
	err = sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA user_version = %d", expected), nil)
	return err
}

func (s *sqliteStore) Get(k []byte) ([]byte, error) {
	conn, err := s.take()
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var out []byte
	err = sqlitex.Execute(conn, `SELECT value FROM kv WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{k},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, out)
			return nil
		},
	})
	return out, err
}

func (s *sqliteStore) Put(k, v []byte) error {
	conn, err := s.take()
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	return sqlitex.Execute(conn,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{Args: []any{k, v, time.Now().Unix()}})
}

func (s *sqliteStore) Del(k []byte) error {
	conn, err := s.take()
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	return sqlitex.Execute(conn, `DELETE FROM kv WHERE key = ?`, &sqlitex.ExecOptions{Args: []any{k}})
}

func (s *sqliteStore) Keys(prefix []byte) ([][]byte, error) {
	conn, err := s.take()
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var out [][]byte
	err = sqlitex.Execute(conn,
		`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`,
		&sqlitex.ExecOptions{
			Args: []any{len(prefix), prefix},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				key := make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, key)
				out = append(out, key)
				return nil
			},
		})
	return out, err
}

func (s *sqliteStore) Close() error {
	if err := s.pool.Close(); err != nil {
		s.l.Error("Error closing database", "path", s.path, "error", err)
		return err
	}
	return nil
}
