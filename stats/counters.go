// Package stats exposes the cache's running counters (spec section 6,
// "Stats (egress)") in two forms: a CSV snapshot for offline analysis, and
// Prometheus collectors for live scraping.
package stats

import "sync/atomic"

// Counters tracks the running totals spec section 6 names:
// blocks_read_hit, cache_size, read_cache_size, plus blocks_read and
// write_cache_size for completeness against section 8's counter invariant.
type Counters struct {
	blocksRead     atomic.Uint64
	blocksReadHit  atomic.Uint64
	cacheSize      atomic.Int64
	readCacheSize  atomic.Int64
	writeCacheSize atomic.Int64
}

// Snapshot is a point-in-time read of Counters, safe to hold onto or export.
type Snapshot struct {
	BlocksRead     uint64 `csv:"blocks_read"`
	BlocksReadHit  uint64 `csv:"blocks_read_hit"`
	CacheSize      int64  `csv:"cache_size"`
	ReadCacheSize  int64  `csv:"read_cache_size"`
	WriteCacheSize int64  `csv:"write_cache_size"`
}

// RecordRead tallies one TryRead attempt, hit or miss.
func (c *Counters) RecordRead(hit bool) {
	c.blocksRead.Add(1)
	if hit {
		c.blocksReadHit.Add(1)
	}
}

// SetSizes overwrites the three size gauges from a cache.Stats-shaped
// snapshot, taken right after any operation that can change them.
func (c *Counters) SetSizes(cacheSize, readCacheSize, writeCacheSize int) {
	c.cacheSize.Store(int64(cacheSize))
	c.readCacheSize.Store(int64(readCacheSize))
	c.writeCacheSize.Store(int64(writeCacheSize))
}

// Snapshot reads every counter into a Snapshot.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		BlocksRead:     c.blocksRead.Load(),
		BlocksReadHit:  c.blocksReadHit.Load(),
		CacheSize:      c.cacheSize.Load(),
		ReadCacheSize:  c.readCacheSize.Load(),
		WriteCacheSize: c.writeCacheSize.Load(),
	}
}
