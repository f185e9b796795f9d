// Package store provides the commit pool's persistence seam: a CometBFT
// key-value handle and an optional Postgres connection, both accepted by
// the pool constructor and held but not read from by any pool operation
// (the pool recovers its state from peers, not from disk).
package store

import (
	"database/sql"
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
	_ "github.com/lib/pq"
)

// KV is the minimal key-value interface the pool's persistence seam is
// defined over, mirroring the teacher's ledger.KV contract.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

// kvAdapter wraps a CometBFT dbm.DB and exposes the KV interface.
type kvAdapter struct {
	db dbm.DB
}

// NewKVAdapter wraps db as a KV.
func NewKVAdapter(db dbm.DB) KV {
	return &kvAdapter{db: db}
}

func (a *kvAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	return a.db.Get(key)
}

func (a *kvAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

// Store is the reserved persistence seam handed to commitpool.Config.Store.
// It satisfies commitpool.Store (Close() error).
type Store struct {
	kv KV
	sql *sql.DB
}

// Open constructs a Store over a CometBFT KV handle and, if dsn is
// non-empty, an optional Postgres connection opened with the lib/pq
// driver. Neither handle is queried by this package; both are reserved
// for a future persistence layer, per the pool's constructor contract.
func Open(kv KV, dsn string) (*Store, error) {
	s := &Store{kv: kv}
	if dsn == "" {
		return s, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s.sql = db
	return s, nil
}

// KV returns the underlying key-value handle, if any.
func (s *Store) KV() KV {
	return s.kv
}

// SQL returns the underlying *sql.DB, or nil if no DSN was configured.
func (s *Store) SQL() *sql.DB {
	return s.sql
}

// Close releases the Postgres connection, if one was opened.
func (s *Store) Close() error {
	if s.sql != nil {
		return s.sql.Close()
	}
	return nil
}
