package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
)

// cachePrefix keeps cache entries apart from badgerhold's typed records
const cachePrefix = "extraction_cache:"

// ExtractionCacheStorage stores extraction results as JSON under badger's
// native entry TTL, so expired results disappear without a sweeper.
type ExtractionCacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewExtractionCacheStorage creates a new ExtractionCacheStorage instance
func NewExtractionCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ExtractionCacheStorage {
	return &ExtractionCacheStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ExtractionCacheStorage) Get(ctx context.Context, key string) (*models.ExtractionResult, error) {
	var data []byte
	err := s.db.Badger().View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cachePrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, interfaces.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var result models.ExtractionResult
	if err := json.Unmarshal(data, &result); err != nil {
		// A stale or corrupt entry is treated as a miss and dropped
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding unreadable cache entry")
		_ = s.Delete(ctx, key)
		return nil, interfaces.ErrCacheMiss
	}
	return &result, nil
}

// Put stores a result. A zero ttl keeps the entry until it is deleted.
func (s *ExtractionCacheStorage) Put(ctx context.Context, key string, result *models.ExtractionResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	err = s.db.Badger().Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(cachePrefix+key), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *ExtractionCacheStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Badger().Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(cachePrefix + key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Clear removes every cache entry and returns how many were live
func (s *ExtractionCacheStorage) Clear(ctx context.Context) (int, error) {
	var keys [][]byte
	err := s.db.Badger().View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(cachePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan cache entries: %w", err)
	}

	wb := s.db.Badger().NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("failed to delete cache entry: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush cache deletes: %w", err)
	}

	s.logger.Debug().Int("entries", len(keys)).Msg("Extraction cache cleared")
	return len(keys), nil
}
