// Package snapshot persists a graph.Database across server restarts.
//
// Two implementations are provided:
//   - memoryStore — in-memory only, used in tests and when no path is configured.
//   - boltStore   — embedded key-value store (bbolt), used in production.
//
// The interface is intentionally minimal: a server loads at most once on
// startup and saves periodically plus once on graceful shutdown. Neither
// path needs iteration or batching.
package snapshot

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/romasoletskyi/looped/internal/graph"
)

// Store is the persistence interface for the conversation graph.
// All implementations must be safe for concurrent use.
type Store interface {
	// Save persists the full state of db, overwriting any previous snapshot.
	Save(db *graph.Database) error

	// Load returns the most recently saved database, if any.
	Load() (db *graph.Database, ok bool, err error)

	// Close releases any resources held by the store (e.g. file handles).
	Close() error
}

// Open returns a Store backed by bbolt at path, or an in-memory Store if
// path is empty.
func Open(path string) (Store, error) {
	if path == "" {
		return newMemoryStore(), nil
	}
	return newBoltStore(path)
}

// --- memoryStore ---------------------------------------------------------

// memoryStore is a Store that keeps the last saved snapshot in a JSON blob
// held in memory. Used in tests and when no snapshot file is configured.
type memoryStore struct {
	mu   sync.Mutex
	data []byte
	ok   bool
}

func newMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Save(db *graph.Database) error {
	data, err := json.Marshal(db)
	if err != nil {
		return fmt.Errorf("snapshot: marshal database: %w", err)
	}
	s.mu.Lock()
	s.data = data
	s.ok = true
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Load() (*graph.Database, bool, error) {
	s.mu.Lock()
	data, ok := s.data, s.ok
	s.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	db, err := graph.ParseDatabase(data)
	if err != nil {
		return nil, false, fmt.Errorf("snapshot: parse database: %w", err)
	}
	return db, true, nil
}

func (s *memoryStore) Close() error { return nil }

// --- boltStore -------------------------------------------------------------

const (
	boltBucket = "graph_snapshot"
	boltKey    = "current"
)

// boltStore is a Store backed by an embedded bbolt database. The database
// file is created at the given path if it does not exist.
type boltStore struct {
	db *bolt.DB
}

// newBoltStore opens (or creates) the bbolt database at path and ensures
// the bucket exists.
func newBoltStore(path string) (Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open bbolt store %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("snapshot: create bbolt bucket: %w", err)
	}

	log.Printf("[SNAPSHOT] store opened at %s", path)
	return &boltStore{db: db}, nil
}

func (s *boltStore) Save(db *graph.Database) error {
	data, err := json.Marshal(db)
	if err != nil {
		return fmt.Errorf("snapshot: marshal database: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return fmt.Errorf("snapshot: bucket %q not found", boltBucket)
		}
		return b.Put([]byte(boltKey), data)
	})
}

func (s *boltStore) Load() (*graph.Database, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(boltKey))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("snapshot: read bbolt store: %w", err)
	}
	if data == nil {
		return nil, false, nil
	}

	db, err := graph.ParseDatabase(data)
	if err != nil {
		return nil, false, fmt.Errorf("snapshot: parse database: %w", err)
	}
	return db, true, nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
