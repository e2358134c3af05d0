package lru

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

var ErrIllegalCapacity = errors.New("illegal lru cache capacity")
var ErrInvalidSharding = errors.New("invalid sharding")

type OnEvict func(k uint64, v []byte)

type Cache interface {
	// Add stores value under key and returns true if eviction happened.
	Add(key uint64, value []byte) bool
	Get(key uint64) ([]byte, bool)
	Remove(key uint64)
	Purge()
}

// ShardedCache spreads keys over independently locked lru shards.
type ShardedCache struct {
	maxBytes uint64
	capacity uint64
	shards   []*lruShard
}

func NewShardedCache(shards int, maxTotalBytes uint64, onEvict OnEvict) (*ShardedCache, error) {
	if shards < 1 {
		return nil, ErrInvalidSharding
	}

	if maxTotalBytes <= 2 || maxTotalBytes < uint64(shards) {
		return nil, errors.Wrapf(ErrIllegalCapacity, "%d bytes over %d shards", maxTotalBytes, shards)
	}

	c := ShardedCache{
		maxBytes: maxTotalBytes,
		capacity: uint64(shards),
		shards:   make([]*lruShard, shards),
	}

	shardMaxBytes := maxTotalBytes / c.capacity
	for i := range c.shards {
		c.shards[i] = newLruShard(shardMaxBytes, onEvict)
	}

	return &c, nil
}

func (c *ShardedCache) Add(key uint64, value []byte) bool {
	return c.getShard(key).add(key, value)
}

func (c *ShardedCache) Get(key uint64) ([]byte, bool) {
	return c.getShard(key).get(key)
}

func (c *ShardedCache) Remove(key uint64) {
	c.getShard(key).remove(key)
}

func (c *ShardedCache) Purge() {
	var wg sync.WaitGroup

	wg.Add(len(c.shards))
	for i := range c.shards {
		go func(i int) {
			defer wg.Done()
			c.shards[i].purge()
		}(i)
	}

	wg.Wait()
}

func (c *ShardedCache) Count() int {
	var count int
	for i := range c.shards {
		count += c.shards[i].len()
	}
	return count
}

// Bytes is the total size of cached values.
func (c *ShardedCache) Bytes() uint64 {
	var total uint64
	for i := range c.shards {
		total += c.shards[i].bytes()
	}
	return total
}

func (c *ShardedCache) MaxBytes() uint64 {
	return c.maxBytes
}

func (c *ShardedCache) Keys() []uint64 {
	keys := make([]uint64, 0, c.Count())
	for i := range c.shards {
		keys = append(keys, c.shards[i].keys()...)
	}
	return keys
}

func (c *ShardedCache) getShard(key uint64) *lruShard {
	bs := make([]byte, 8)
	binary.LittleEndian.PutUint64(bs, key)
	hash := xxhash.Sum64(bs)
	return c.shards[hash%c.capacity]
}
