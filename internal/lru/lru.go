package lru

import (
	"container/list"
	"sync"
)

// lruShard is a byte bounded lru list. get moves elements,
// so every method takes the exclusive lock.
type lruShard struct {
	mu         sync.Mutex
	totalBytes uint64
	maxBytes   uint64
	evictList  *list.List
	elems      map[uint64]*list.Element
	onEvict    OnEvict
}

func newLruShard(maxBytes uint64, onEvict OnEvict) *lruShard {
	return &lruShard{
		maxBytes:  maxBytes,
		evictList: list.New(),
		elems:     make(map[uint64]*list.Element),
		onEvict:   onEvict,
	}
}

type item struct {
	key   uint64
	value []byte
}

func (ls *lruShard) get(key uint64) ([]byte, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	elem, ok := ls.elems[key]
	if !ok {
		return nil, false
	}

	ls.evictList.MoveToFront(elem)
	return elem.Value.(*item).value, true
}

// add stores value under key and returns true if eviction happened.
// Values larger than the shard are not stored at all.
func (ls *lruShard) add(key uint64, value []byte) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	size := uint64(len(value))
	if size > ls.maxBytes {
		if elem, ok := ls.elems[key]; ok {
			ls.removeElementUnderLock(elem)
		}
		return false
	}

	if elem, ok := ls.elems[key]; ok {
		it := elem.Value.(*item)
		ls.totalBytes -= uint64(len(it.value))
		it.value = value
		ls.totalBytes += size
		ls.evictList.MoveToFront(elem)
		return ls.evictUnderLock(elem)
	}

	elem := ls.evictList.PushFront(&item{key: key, value: value})
	ls.elems[key] = elem
	ls.totalBytes += size
	return ls.evictUnderLock(elem)
}

// evictUnderLock drops the oldest elements until the shard fits, never keep.
func (ls *lruShard) evictUnderLock(keep *list.Element) bool {
	var evicted bool
	for ls.totalBytes > ls.maxBytes {
		oldest := ls.evictList.Back()
		if oldest == nil || oldest == keep {
			break
		}

		k, v := ls.removeElementUnderLock(oldest)
		evicted = true
		if ls.onEvict != nil {
			ls.onEvict(k, v)
		}
	}

	return evicted
}

func (ls *lruShard) remove(key uint64) ([]byte, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	elem, ok := ls.elems[key]
	if !ok {
		return nil, false
	}

	_, value := ls.removeElementUnderLock(elem)
	return value, true
}

func (ls *lruShard) purge() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.elems = make(map[uint64]*list.Element)
	ls.evictList.Init()
	ls.totalBytes = 0
}

func (ls *lruShard) removeElementUnderLock(elem *list.Element) (uint64, []byte) {
	ls.evictList.Remove(elem)
	it := elem.Value.(*item)
	delete(ls.elems, it.key)
	ls.totalBytes -= uint64(len(it.value))
	return it.key, it.value
}

func (ls *lruShard) len() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.elems)
}

func (ls *lruShard) bytes() uint64 {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.totalBytes
}

func (ls *lruShard) keys() []uint64 {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	keys := make([]uint64, 0, len(ls.elems))
	for k := range ls.elems {
		keys = append(keys, k)
	}
	return keys
}
