package storage

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/linxGnu/grocksdb"

	"github.com/petra/petracache/internal/logging"
)

// lazyExpirationRemoved counts keys reaped on GET because their TTL had
// already passed. compactionRemoved counts the same thing caught later
// by the background compaction filter. Both are process-wide: compaction
// runs on RocksDB's own background threads, outside any Store method.
var (
	lazyExpirationRemoved atomic.Uint64
	compactionRemoved     atomic.Uint64
)

// TTLStats reports the two expiration counters for metrics export.
type TTLStats struct {
	LazyExpirationRemoved uint64
	CompactionRemoved     uint64
}

// ReadTTLStats snapshots the process-wide TTL counters.
func ReadTTLStats() TTLStats {
	return TTLStats{
		LazyExpirationRemoved: lazyExpirationRemoved.Load(),
		CompactionRemoved:     compactionRemoved.Load(),
	}
}

// ttlCompactionFilter drops entries whose expire_at has already passed
// when RocksDB compacts the SST files that contain them. It is the
// backstop for keys nobody has GET'd since they expired.
type ttlCompactionFilter struct{}

func newTTLCompactionFilter() *ttlCompactionFilter {
	return &ttlCompactionFilter{}
}

// Filter implements grocksdb.CompactionFilter.
func (f *ttlCompactionFilter) Filter(level int, key, val []byte) (remove bool, newVal []byte) {
	if len(val) < 8 {
		return false, nil
	}
	expireAt := binary.LittleEndian.Uint64(val[:8])
	if expireAt != 0 && uint64(time.Now().Unix()) >= expireAt {
		compactionRemoved.Add(1)
		logging.Debugf("ttl compaction: removing expired key %q (expire_at=%d)", key, expireAt)
		return true, nil
	}
	return false, nil
}

// Name implements grocksdb.CompactionFilter.
func (f *ttlCompactionFilter) Name() string {
	return "petracache.ttl_filter"
}

var _ grocksdb.CompactionFilter = (*ttlCompactionFilter)(nil)
