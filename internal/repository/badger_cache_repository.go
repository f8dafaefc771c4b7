package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/timetable-ingest/pkg/errors"
)

// BadgerCacheRepository caches expanded timetable documents in an embedded badger store.
type BadgerCacheRepository struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewBadgerCacheRepository constructs a badger backed cache repository.
func NewBadgerCacheRepository(db *badger.DB, logger *zap.Logger) *BadgerCacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgerCacheRepository{db: db, logger: logger}
}

// Get retrieves and unmarshals the cached value into dest.
func (r *BadgerCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.db == nil {
		return appErrors.ErrCacheMiss
	}
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, dest)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return appErrors.ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("badger get %s: %w", key, err)
	}
	return nil
}

// Set marshals value and stores it with the given TTL.
func (r *BadgerCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.db == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), payload)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("badger set %s: %w", key, err)
		}
		return nil
	})
}

// DeleteByPattern removes keys matching a glob pattern such as "timetable:*".
func (r *BadgerCacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.db == nil {
		return nil
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid cache pattern %s: %w", pattern, err)
	}

	var keys [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(literalPrefix(pattern))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if ok, _ := path.Match(pattern, string(key)); ok {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger scan pattern %s: %w", pattern, err)
	}

	if len(keys) == 0 {
		return nil
	}
	batch := r.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if err := batch.Delete(key); err != nil {
			return fmt.Errorf("badger delete %s: %w", key, err)
		}
	}
	if err := batch.Flush(); err != nil {
		return fmt.Errorf("badger flush deletes: %w", err)
	}
	r.logger.Debug("cache entries invalidated", zap.String("pattern", pattern), zap.Int("count", len(keys)))
	return nil
}

// Close releases the underlying store.
func (r *BadgerCacheRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func literalPrefix(pattern string) string {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*', '?', '[', '\\':
			return pattern[:i]
		}
	}
	return pattern
}
