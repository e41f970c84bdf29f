// Package lookupcache keeps Google Books results on disk so repeated scans
// of the same shelf do not spend API quota.
package lookupcache

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

const keyPrefix = "lookup:"

// Cache is a badger-backed store of lookup results with a TTL
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens or creates the cache in dir. An empty dir keeps the cache in memory.
func Open(dir string, ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open lookup cache: %w", err)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// Get returns the cached result for key. Errors count as a miss.
func (c *Cache) Get(key string) (models.SearchResult, bool) {
	var result models.SearchResult
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			slog.Warn("Lookup cache read failed", "key", key, "err", err)
		}
		return models.SearchResult{}, false
	}
	return result, true
}

// Set stores result under key. Failures are logged and otherwise ignored.
func (c *Cache) Set(key string, result models.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("Lookup cache marshal failed", "key", key, "err", err)
		return
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+key), data)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		slog.Warn("Lookup cache write failed", "key", key, "err", err)
	}
}

// Close flushes and closes the underlying database
func (c *Cache) Close() error {
	return c.db.Close()
}
