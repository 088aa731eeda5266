package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/linxGnu/grocksdb"

	"github.com/petra/petracache/internal/config"
	"github.com/petra/petracache/internal/logging"
)

// Store is a key-value façade over an embedded LSM engine. Every write
// goes through a WriteOptions with the write-ahead log disabled: the
// cache trades process-crash durability for write latency, consistent
// with a backend that sits behind a replicated cache tier rather than
// being the system of record.
type Store struct {
	db    *grocksdb.DB
	ro    *grocksdb.ReadOptions
	wo    *grocksdb.WriteOptions
	cache *grocksdb.Cache
	bbto  *grocksdb.BlockBasedTableOptions
	opts  *grocksdb.Options

	// filter pins the compaction filter callback alive for as long as db
	// is open; cgo requires the Go object it calls back into not be
	// collected while RocksDB still holds a reference to it.
	filter *ttlCompactionFilter
}

// Open creates or opens the LSM database at cfg.DBPath.
func Open(cfg config.StorageConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create data directory: %w", err)
		}
	}

	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	opts.SetMaxBackgroundJobs(int(cfg.MaxBackgroundJobs))
	opts.SetWriteBufferSize(uint64(cfg.WriteBufferBytes))
	opts.SetMaxWriteBufferNumber(cfg.MaxWriteBufferCount)
	opts.SetTargetFileSizeBase(uint64(cfg.TargetFileSizeBytes))
	opts.SetCompactionStyle(grocksdb.LevelCompactionStyle)

	if cfg.EnableCompression {
		opts.SetCompression(grocksdb.LZ4Compression)
	} else {
		opts.SetCompression(grocksdb.NoCompression)
	}

	cache := grocksdb.NewLRUCache(uint64(cfg.BlockCacheBytes))
	bbto := grocksdb.NewDefaultBlockBasedTableOptions()
	bbto.SetBlockCache(cache)
	bbto.SetFilterPolicy(grocksdb.NewBloomFilter(10))
	opts.SetBlockBasedTableFactory(bbto)

	var filter *ttlCompactionFilter
	if cfg.EnableTTLCompaction {
		filter = newTTLCompactionFilter()
		opts.SetCompactionFilter(filter)
	}

	db, err := grocksdb.OpenDb(opts, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.DBPath, err)
	}

	ro := grocksdb.NewDefaultReadOptions()
	wo := grocksdb.NewDefaultWriteOptions()
	wo.DisableWAL(true)

	logging.Infof("storage engine opened: path=%s block_cache=%dMB ttl_compaction=%v",
		cfg.DBPath, cfg.BlockCacheBytes/(1<<20), cfg.EnableTTLCompaction)

	return &Store{
		db:     db,
		ro:     ro,
		wo:     wo,
		cache:  cache,
		filter: filter,
		bbto:   bbto,
		opts:   opts,
	}, nil
}

// Close releases the engine's native resources. Close is not safe to
// call concurrently with any other Store method.
func (s *Store) Close() {
	s.db.Close()
	s.ro.Destroy()
	s.wo.Destroy()
	s.bbto.Destroy()
	s.cache.Destroy()
	s.opts.Destroy()
}

// Get fetches key, lazily deleting and reporting a miss if the stored
// value has already expired.
func (s *Store) Get(key []byte) (StoredValue, bool, error) {
	slice, err := s.db.Get(s.ro, key)
	if err != nil {
		return StoredValue{}, false, fmt.Errorf("storage: get: %w", err)
	}
	defer slice.Free()

	if !slice.Exists() {
		return StoredValue{}, false, nil
	}

	value, err := Decode(slice.Data())
	if err != nil {
		return StoredValue{}, false, fmt.Errorf("storage: decode %q: %w", key, err)
	}

	if value.IsExpired(nowUnix()) {
		s.expireLazily(key, value.ExpireAt)
		return StoredValue{}, false, nil
	}

	// Copy out of the slice: it is freed above and the caller may hold
	// onto Data past this call (e.g. across a batched multi-get write).
	data := append([]byte(nil), value.Data...)
	return StoredValue{ExpireAt: value.ExpireAt, Flags: value.Flags, Data: data}, true, nil
}

// MultiGetResult pairs a requested key with its lookup outcome.
type MultiGetResult struct {
	Key   []byte
	Value StoredValue
	Found bool
}

// MultiGet fetches several keys in one batched engine call, applying the
// same lazy-expiration rule as Get to each.
func (s *Store) MultiGet(keys [][]byte) ([]MultiGetResult, error) {
	slices, err := s.db.MultiGet(s.ro, keys...)
	if err != nil {
		return nil, fmt.Errorf("storage: multi_get: %w", err)
	}
	defer slices.Destroy()

	results := make([]MultiGetResult, 0, len(keys))
	now := nowUnix()

	for i, key := range keys {
		slice := slices[i]
		if !slice.Exists() {
			results = append(results, MultiGetResult{Key: key, Found: false})
			continue
		}

		value, err := Decode(slice.Data())
		if err != nil {
			results = append(results, MultiGetResult{Key: key, Found: false})
			continue
		}

		if value.IsExpired(now) {
			s.expireLazily(key, value.ExpireAt)
			results = append(results, MultiGetResult{Key: key, Found: false})
			continue
		}

		data := append([]byte(nil), value.Data...)
		results = append(results, MultiGetResult{
			Key:   key,
			Value: StoredValue{ExpireAt: value.ExpireAt, Flags: value.Flags, Data: data},
			Found: true,
		})
	}

	return results, nil
}

// Set stores value under key, overwriting any existing entry.
func (s *Store) Set(key []byte, value StoredValue) error {
	if err := s.db.Put(s.wo, key, value.Encode()); err != nil {
		return fmt.Errorf("storage: set: %w", err)
	}
	return nil
}

// Delete removes key, reporting whether a live (non-expired) entry
// existed beforehand.
func (s *Store) Delete(key []byte) (bool, error) {
	slice, err := s.db.Get(s.ro, key)
	if err != nil {
		return false, fmt.Errorf("storage: delete: %w", err)
	}
	existed := slice.Exists()
	var wasLive bool
	if existed {
		value, decodeErr := Decode(slice.Data())
		wasLive = decodeErr != nil || !value.IsExpired(nowUnix())
	}
	slice.Free()

	if existed {
		if err := s.db.Delete(s.wo, key); err != nil {
			return false, fmt.Errorf("storage: delete: %w", err)
		}
	}
	return wasLive, nil
}

// Compact triggers a full manual compaction of the key range, forcing
// the TTL compaction filter (if enabled) to run immediately rather than
// waiting for RocksDB's own compaction scheduling.
func (s *Store) Compact() {
	logging.Info("manual compaction starting")
	s.db.CompactRange(grocksdb.Range{})
	stats := ReadTTLStats()
	logging.Infof("manual compaction complete: compaction_removed=%d", stats.CompactionRemoved)
}

// BlockCacheUsage reports the current block cache occupancy in bytes, read
// directly from the LRU cache handle.
func (s *Store) BlockCacheUsage() uint64 {
	return s.cache.GetUsage()
}

func (s *Store) expireLazily(key []byte, expireAt uint64) {
	lazyExpirationRemoved.Add(1)
	logging.Debugf("lazy expiration: removed expired key %q (expire_at=%d)", key, expireAt)
	if err := s.db.Delete(s.wo, key); err != nil {
		logging.Warnf("lazy expiration: failed to delete %q: %v", key, err)
	}
}

