package securedraw

import (
	"context"
	"database/sql"
	"sync"

	"github.com/cockroachdb/errors"
	_ "github.com/marcboeker/go-duckdb"
)

var _ Ledger = (*Store)(nil)

// Store is a Ledger backed by DuckDB. Writers are serialized so that concurrent
// updates never race into a transaction conflict.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens the DuckDB database at path; an empty path or ":memory:" keeps the
// ledger in memory.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (key VARCHAR PRIMARY KEY, value BLOB NOT NULL);`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating records table")
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?;`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRecordNotFound, "%s", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read record %s", key)
	}
	return value, nil
}

func (s *Store) Update(ctx context.Context, fn Txn, keys ...string) (_err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if _err != nil {
			_ = tx.Rollback()
		}
	}()

	current := make([][]byte, len(keys))
	for i, key := range keys {
		var value []byte
		err := tx.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?;`, key).Scan(&value)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return errors.Wrapf(err, "failed to read record %s", key)
		default:
			current[i] = value
		}
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if len(next) != len(keys) {
		return errors.Newf("transaction returned %d records for %d keys", len(next), len(keys))
	}

	for i, key := range keys {
		if next[i] == nil {
			if current[i] == nil {
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE key = ?;`, key); err != nil {
				return errors.Wrapf(err, "failed to delete record %s", key)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO records (key, value) VALUES (?, ?);`, key, next[i]); err != nil {
			return errors.Wrapf(err, "failed to write record %s", key)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
