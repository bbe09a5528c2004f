package cache

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// EntryTTL bounds how long an unused hash stays cached. Every Put renews it.
const EntryTTL = 90 * 24 * time.Hour

// DefaultPath returns $XDG_CACHE_HOME/changeguard/hashes.
func DefaultPath() string {
	return filepath.Join(xdg.CacheHome, "changeguard", "hashes")
}

// Store is a Badger-backed hash cache.
type Store struct {
	db *badger.DB
}

// Open opens or creates the cache at path.
func Open(path string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1))
	if err != nil {
		return nil, fmt.Errorf("failed to open hash cache at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the entry for rel under root.
func (s *Store) Get(root, rel string) (*Entry, error) {
	entry := new(Entry)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(root, rel))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return ErrNotFound
		case err != nil:
			return err
		}
		return item.Value(entry.decode)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put stores the entry for rel under root.
func (s *Store) Put(root, rel string, entry *Entry) error {
	return s.PutBatch(root, map[string]*Entry{rel: entry})
}

// PutBatch stores entries keyed by relative path under root.
func (s *Store) PutBatch(root string, entries map[string]*Entry) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for rel, entry := range entries {
		value, err := entry.encode()
		if err != nil {
			return fmt.Errorf("failed to encode cache entry for %s: %w", rel, err)
		}
		if err := wb.SetEntry(badger.NewEntry(makeKey(root, rel), value).WithTTL(EntryTTL)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Forget removes every entry under root. An empty root removes everything.
func (s *Store) Forget(root string) error {
	if root == "" {
		return s.db.DropPrefix(keyspace)
	}
	return s.db.DropPrefix(rootPrefix(root))
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries int
	Roots   map[string]int
}

// Stats counts the live entries per root.
func (s *Store) Stats() (Stats, error) {
	stats := Stats{Roots: make(map[string]int)}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: keyspace})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			root, _ := splitKey(it.Item().Key())
			stats.Entries++
			stats.Roots[root]++
		}
		return nil
	})
	return stats, err
}
