package cache

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// NewBadger opens an embedded badger store under dir for use as a local cache.
func NewBadger(dir string) (*badger.DB, error) {
	if dir == "" {
		dir = "./data/cache"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create badger directory: %w", err)
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}
